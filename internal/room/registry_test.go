package room

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/tictactoe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	mu        sync.Mutex
	snapshots map[string]*entity.RoomSnapshot
	loads     int
}

func (that *stubLoader) LoadRoomSnapshot(_ context.Context, code string) (*entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.loads++

	snapshot, ok := that.snapshots[code]
	if !ok {
		return nil, apperror.ErrNotFound
	}

	return snapshot, nil
}

func testRegistry(loader snapshotLoader) *Registry {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewRegistry(logger, loader, RegistryOptions{
		Room:             Options{MaxPieces: 3, MovementRule: tictactoe.MovementAny},
		DefaultRoomCode:  "PUBLIC",
		RoomGrace:        5 * time.Minute,
		DefaultRoomGrace: 30 * time.Minute,
	})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Run("Creates a fresh room on a miss", func(t *testing.T) {
		registry := testRegistry(&stubLoader{})

		created, err := registry.GetOrCreate(context.Background(), "ABC123")
		require.NoError(t, err)

		snapshot := created.Snapshot()
		assert.Equal(t, "ABC123", snapshot.RoomCode)
		assert.Equal(t, entity.PhasePlacement, snapshot.GamePhase)
		assert.True(t, snapshot.GameActive)
	})

	t.Run("Restores from a persisted snapshot on a registry miss", func(t *testing.T) {
		loader := &stubLoader{snapshots: map[string]*entity.RoomSnapshot{
			"XYZ789": {
				RoomCode:      "XYZ789",
				Players:       []entity.Player{{UserID: "user-1", Username: "alice", Symbol: entity.SymbolX, SocketRef: "stale"}},
				CurrentPlayer: entity.SymbolO,
				GameActive:    true,
				GamePhase:     entity.PhaseMovement,
				Scores:        entity.Scores{X: 2},
				MaxPieces:     3,
			},
		}}
		registry := testRegistry(loader)

		restored, err := registry.GetOrCreate(context.Background(), "XYZ789")
		require.NoError(t, err)

		snapshot := restored.Snapshot()
		assert.Equal(t, entity.SymbolO, snapshot.CurrentPlayer)
		assert.Equal(t, entity.PhaseMovement, snapshot.GamePhase)
		assert.Equal(t, 2, snapshot.Scores.X)

		// stale connection handles do not survive the restore
		require.Len(t, snapshot.Players, 1)
		assert.False(t, snapshot.Players[0].IsConnected())
	})

	t.Run("Concurrent calls with the same code attach to one room", func(t *testing.T) {
		registry := testRegistry(&stubLoader{})

		const callers = 16

		var wg sync.WaitGroup
		wg.Add(callers)

		results := make([]*Room, callers)
		for i := 0; i < callers; i++ {
			go func(slot int) {
				defer wg.Done()

				got, err := registry.GetOrCreate(context.Background(), "RACE01")
				require.NoError(t, err)
				results[slot] = got
			}(i)
		}

		wg.Wait()

		for _, got := range results {
			assert.Same(t, results[0], got)
		}
	})
}

// gatedLoader parks every load for the given code until release is closed.
type gatedLoader struct {
	stubLoader
	slowCode string
	release  chan struct{}
}

func (that *gatedLoader) LoadRoomSnapshot(ctx context.Context, code string) (*entity.RoomSnapshot, error) {
	if code == that.slowCode {
		<-that.release
	}

	return that.stubLoader.LoadRoomSnapshot(ctx, code)
}

type failingLoader struct {
	mu    sync.Mutex
	fails int
	loads int
}

func (that *failingLoader) LoadRoomSnapshot(_ context.Context, _ string) (*entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.loads++
	if that.loads <= that.fails {
		return nil, errors.New("backend unavailable")
	}

	return nil, apperror.ErrNotFound
}

func TestRegistry_GetOrCreate_Isolation(t *testing.T) {
	t.Run("Slow load of one code does not stall other codes", func(t *testing.T) {
		loader := &gatedLoader{slowCode: "SLOW01", release: make(chan struct{})}
		registry := testRegistry(loader)

		slowDone := make(chan struct{})
		go func() {
			defer close(slowDone)
			_, err := registry.GetOrCreate(context.Background(), "SLOW01")
			assert.NoError(t, err)
		}()

		fastDone := make(chan struct{})
		go func() {
			defer close(fastDone)
			_, err := registry.GetOrCreate(context.Background(), "FAST01")
			assert.NoError(t, err)
		}()

		select {
		case <-fastDone:
		case <-time.After(2 * time.Second):
			t.Fatal("independent room creation stalled behind an in-flight load")
		}

		close(loader.release)
		<-slowDone
	})

	t.Run("Failed load is retried on the next call", func(t *testing.T) {
		loader := &failingLoader{fails: 1}
		registry := testRegistry(loader)

		_, err := registry.GetOrCreate(context.Background(), "FLAKY1")
		require.Error(t, err)

		created, err := registry.GetOrCreate(context.Background(), "FLAKY1")
		require.NoError(t, err)
		assert.Equal(t, "FLAKY1", created.Snapshot().RoomCode)
	})
}

func TestRegistry_GenerateCode(t *testing.T) {
	registry := testRegistry(&stubLoader{})

	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := registry.GenerateCode(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}

	// 20 draws from a 36^6 space colliding would mean a broken generator
	assert.Greater(t, len(seen), 1)
}

func TestRegistry_EvictIdle(t *testing.T) {
	t.Run("Empty room past its grace window is evicted", func(t *testing.T) {
		registry := testRegistry(&stubLoader{})

		idle, err := registry.GetOrCreate(context.Background(), "IDLE01")
		require.NoError(t, err)

		_, err = idle.Join("user-1", "alice", "sock-1")
		require.NoError(t, err)
		idle.MarkDisconnected("sock-1")

		evicted := registry.EvictIdle(time.Now().Add(10 * time.Minute))

		assert.Equal(t, []string{"IDLE01"}, evicted)
		_, ok := registry.Get("IDLE01")
		assert.False(t, ok)
	})

	t.Run("Room with a connected player is never evicted", func(t *testing.T) {
		registry := testRegistry(&stubLoader{})

		occupied, err := registry.GetOrCreate(context.Background(), "BUSY01")
		require.NoError(t, err)

		_, err = occupied.Join("user-1", "alice", "sock-1")
		require.NoError(t, err)

		evicted := registry.EvictIdle(time.Now().Add(24 * time.Hour))

		assert.Empty(t, evicted)
		_, ok := registry.Get("BUSY01")
		assert.True(t, ok)
	})

	t.Run("Default room gets the longer grace window", func(t *testing.T) {
		registry := testRegistry(&stubLoader{})

		_, err := registry.GetOrCreate(context.Background(), "PUBLIC")
		require.NoError(t, err)
		_, err = registry.GetOrCreate(context.Background(), "ABC123")
		require.NoError(t, err)

		// 10 minutes: past the user-room grace, inside the default's
		evicted := registry.EvictIdle(time.Now().Add(10 * time.Minute))
		assert.Equal(t, []string{"ABC123"}, evicted)

		_, ok := registry.Get("PUBLIC")
		assert.True(t, ok)

		// an hour later the default room goes too
		evicted = registry.EvictIdle(time.Now().Add(time.Hour))
		assert.Equal(t, []string{"PUBLIC"}, evicted)
	})
}
