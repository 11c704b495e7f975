package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
)

const (
	codeLength      = 6
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 32
)

var ErrCodeSpaceExhausted = errors.New("could not allocate an unused room code")

// snapshotLoader is the slice of the persistence gateway the registry needs
// to lazily restore rooms that fell out of memory.
type snapshotLoader interface {
	LoadRoomSnapshot(ctx context.Context, code string) (*entity.RoomSnapshot, error)
}

// RegistryOptions configure room rules and eviction policy.
type RegistryOptions struct {
	Room             Options
	DefaultRoomCode  string
	RoomGrace        time.Duration
	DefaultRoomGrace time.Duration
}

// roomEntry is one slot in the registry map. The once gate means the
// snapshot load for a code runs at most once however many connections race
// on it; losers block on the winner's result instead of the whole registry.
type roomEntry struct {
	once sync.Once
	room *Room
	err  error
}

// Registry owns the process-wide code→room mapping and room lifetime. It is
// the only component allowed to create or drop live Room objects.
type Registry struct {
	logger *slog.Logger
	loader snapshotLoader
	opts   RegistryOptions

	mu    sync.Mutex
	rooms map[string]*roomEntry
}

func NewRegistry(logger *slog.Logger, loader snapshotLoader, opts RegistryOptions) *Registry {
	return &Registry{
		logger: logger.With("component", "registry"),
		loader: loader,
		opts:   opts,
		rooms:  make(map[string]*roomEntry),
	}
}

// GetOrCreate returns the live room for code, restoring it from a persisted
// snapshot if one exists and constructing a fresh room otherwise. Racing
// callers on the same fresh code always attach to the same Room object; the
// registry lock only guards the map itself, not the snapshot load.
func (that *Registry) GetOrCreate(ctx context.Context, code string) (*Room, error) {
	that.mu.Lock()
	entry, ok := that.rooms[code]
	if !ok {
		entry = &roomEntry{}
		that.rooms[code] = entry
	}
	that.mu.Unlock()

	entry.once.Do(func() {
		snapshot, err := that.loader.LoadRoomSnapshot(ctx, code)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			entry.err = fmt.Errorf("failed to load room snapshot: %w", err)
			return
		}

		if snapshot != nil {
			entry.room = Restore(snapshot, that.opts.Room)
			that.logger.Info("room restored from snapshot", "code", code)
		} else {
			entry.room = New(code, that.opts.Room)
			that.logger.Info("room created", "code", code)
		}
	})

	if entry.err != nil {
		// drop the failed entry so a later call can retry the load
		that.mu.Lock()
		if that.rooms[code] == entry {
			delete(that.rooms, code)
		}
		that.mu.Unlock()

		return nil, entry.err
	}

	return entry.room, nil
}

func (that *Registry) Get(code string) (*Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.rooms[code]
	if !ok || entry.room == nil {
		return nil, false
	}

	return entry.room, true
}

func (that *Registry) Delete(code string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, code)
}

// GenerateCode allocates a fresh 6-character room code that collides neither
// with a live room nor with a persisted snapshot.
func (that *Registry) GenerateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode()

		if _, taken := that.Get(code); taken {
			continue
		}

		snapshot, err := that.loader.LoadRoomSnapshot(ctx, code)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}

		if snapshot == nil {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// EvictIdle drops rooms that have had no connected players for their grace
// window and returns the evicted codes. Snapshots stay in the persistence
// gateway, so an evicted room is restorable until the retention sweep
// removes it.
func (that *Registry) EvictIdle(now time.Time) []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	var evicted []string
	for code, entry := range that.rooms {
		if entry.room == nil || entry.room.ConnectedPlayers() > 0 {
			continue
		}

		grace := that.opts.RoomGrace
		if code == that.opts.DefaultRoomCode {
			grace = that.opts.DefaultRoomGrace
		}

		if now.Sub(entry.room.LastActivity()) >= grace {
			delete(that.rooms, code)
			evicted = append(evicted, code)
			that.logger.Info("idle room evicted", "code", code)
		}
	}

	return evicted
}

func randomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))] //nolint: gosec // room codes are not secrets
	}

	return string(code)
}
