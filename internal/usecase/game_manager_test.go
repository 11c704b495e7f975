package usecase

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/repository"
	"github.com/playtrio/tictactoe-backend/internal/room"
	"github.com/playtrio/tictactoe-backend/internal/service"
	"github.com/playtrio/tictactoe-backend/internal/tictactoe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	mu        sync.Mutex
	snapshots map[string]entity.RoomSnapshot
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{snapshots: make(map[string]entity.RoomSnapshot)}
}

func (that *fakeRoomRepo) SaveSnapshot(_ context.Context, snapshot *entity.RoomSnapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.snapshots[snapshot.RoomCode] = *snapshot

	return nil
}

func (that *fakeRoomRepo) LoadRoomSnapshot(_ context.Context, code string) (*entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot, ok := that.snapshots[code]
	if !ok {
		return nil, apperror.ErrNotFound
	}

	return &snapshot, nil
}

func (that *fakeRoomRepo) DeleteSnapshot(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.snapshots[code]; !ok {
		return apperror.ErrNotFound
	}

	delete(that.snapshots, code)

	return nil
}

func (that *fakeRoomRepo) ListActiveByUser(_ context.Context, userID string) ([]entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var games []entity.RoomSnapshot

	for _, snapshot := range that.snapshots {
		if snapshot.GameActive && snapshot.PlayerByUserID(userID) != nil {
			games = append(games, snapshot)
		}
	}

	return games, nil
}

func (that *fakeRoomRepo) CleanupOldSnapshots(context.Context, time.Time, repository.RetentionPolicy) (int, error) {
	return 0, nil
}

func (that *fakeRoomRepo) stored(code string) (entity.RoomSnapshot, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot, ok := that.snapshots[code]

	return snapshot, ok
}

type fakeStatsRepo struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{outcomes: make(map[string][]string)}
}

func (that *fakeStatsRepo) RecordOutcome(_ context.Context, userID, _, outcome string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.outcomes[userID] = append(that.outcomes[userID], outcome)

	return nil
}

func (that *fakeStatsRepo) GetPlayerStats(_ context.Context, userID string) (*entity.PlayerStats, error) {
	return &entity.PlayerStats{UserID: userID}, nil
}

func (that *fakeStatsRepo) TopPlayers(context.Context, int) ([]entity.PlayerStats, error) {
	return nil, nil
}

func (that *fakeStatsRepo) recorded(userID string) []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.outcomes[userID]...)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]string)}
}

func (that *fakeUserRepo) Save(_ context.Context, user *entity.User) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.users[user.ID] = user.Username

	return nil
}

func (that *fakeUserRepo) Find(_ context.Context, id string) (*entity.User, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	username, ok := that.users[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}

	return &entity.User{ID: id, Username: username}, nil
}

func newTestManager(t *testing.T) (*GameManager, *fakeRoomRepo, *fakeStatsRepo, *fakeUserRepo) {
	t.Helper()

	roomRepo := newFakeRoomRepo()
	statsRepo := newFakeStatsRepo()
	userRepo := newFakeUserRepo()

	registry := room.NewRegistry(slog.Default(), roomRepo, room.RegistryOptions{
		Room:             room.Options{MaxPieces: 3, MovementRule: tictactoe.MovementAny},
		DefaultRoomCode:  "PUBLIC",
		RoomGrace:        5 * time.Minute,
		DefaultRoomGrace: 30 * time.Minute,
	})

	manager := NewGameManager(
		slog.Default(),
		registry,
		roomRepo,
		statsRepo,
		userRepo,
		service.NewAuthService("test-secret"),
		"PUBLIC",
	)

	return manager, roomRepo, statsRepo, userRepo
}

func TestGameManager_ResolveIdentity(t *testing.T) {
	ctx := context.Background()
	auth := service.NewAuthService("test-secret")

	t.Run("Empty token yields a named guest", func(t *testing.T) {
		manager, _, _, _ := newTestManager(t)

		identity, err := manager.ResolveIdentity(ctx, "", "")

		require.NoError(t, err)
		assert.NotEmpty(t, identity.UserID)
		assert.NotEmpty(t, identity.Name)
	})

	t.Run("Guest keeps the requested username", func(t *testing.T) {
		manager, _, _, _ := newTestManager(t)

		identity, err := manager.ResolveIdentity(ctx, "", "alice")

		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Name)
	})

	t.Run("Valid token maps to its subject", func(t *testing.T) {
		manager, _, _, userRepo := newTestManager(t)

		token, err := auth.GenerateToken("user-1", "alice")
		require.NoError(t, err)

		identity, err := manager.ResolveIdentity(ctx, token, "")

		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, "alice", identity.Name)

		stored, err := userRepo.Find(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.Username)
	})

	t.Run("Stored username outlives the token claim", func(t *testing.T) {
		manager, _, _, userRepo := newTestManager(t)

		require.NoError(t, userRepo.Save(ctx, &entity.User{ID: "user-1", Username: "renamed"}))

		token, err := auth.GenerateToken("user-1", "alice")
		require.NoError(t, err)

		identity, err := manager.ResolveIdentity(ctx, token, "")

		require.NoError(t, err)
		assert.Equal(t, "renamed", identity.Name)
	})

	t.Run("Custom username overrides and is stored", func(t *testing.T) {
		manager, _, _, userRepo := newTestManager(t)

		token, err := auth.GenerateToken("user-1", "alice")
		require.NoError(t, err)

		identity, err := manager.ResolveIdentity(ctx, token, "ace")

		require.NoError(t, err)
		assert.Equal(t, "ace", identity.Name)

		stored, err := userRepo.Find(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "ace", stored.Username)
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		manager, _, _, _ := newTestManager(t)

		_, err := manager.ResolveIdentity(ctx, "not-a-token", "")
		require.Error(t, err)
	})
}

func TestGameManager_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty code lands in the default room", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager(t)

		joined, player, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "sock-1", "")

		require.NoError(t, err)
		assert.Equal(t, "PUBLIC", joined.Snapshot().RoomCode)
		assert.Equal(t, entity.SymbolX, player.Symbol)

		assert.Eventually(t, func() bool {
			_, ok := roomRepo.stored("PUBLIC")
			return ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Join persists the seated snapshot", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager(t)

		_, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "sock-1", "ABC123")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			snapshot, ok := roomRepo.stored("ABC123")
			return ok && snapshot.PlayerByUserID("user-1") != nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Room full surfaces unchanged", func(t *testing.T) {
		manager, _, _, _ := newTestManager(t)

		_, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "s1", "ABC123")
		require.NoError(t, err)
		_, _, err = manager.JoinRoom(ctx, &service.Identity{UserID: "user-2", Name: "bob"}, "s2", "ABC123")
		require.NoError(t, err)

		_, _, err = manager.JoinRoom(ctx, &service.Identity{UserID: "user-3", Name: "carol"}, "s3", "ABC123")
		assert.ErrorIs(t, err, apperror.ErrRoomFull)
	})
}

func TestGameManager_MakeMove_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	manager, _, statsRepo, _ := newTestManager(t)

	activeRoom, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "s1", "ABC123")
	require.NoError(t, err)
	_, _, err = manager.JoinRoom(ctx, &service.Identity{UserID: "user-2", Name: "bob"}, "s2", "ABC123")
	require.NoError(t, err)

	// Given: X placing 0,1 and O 3,4, then X completing the top row
	var result *room.MoveResult
	for _, move := range []struct {
		symbol string
		cell   int
	}{
		{entity.SymbolX, 0},
		{entity.SymbolO, 3},
		{entity.SymbolX, 1},
		{entity.SymbolO, 4},
		{entity.SymbolX, 2},
	} {
		result, err = manager.MakeMove(activeRoom, move.symbol, move.cell, nil)
		require.NoError(t, err)
	}

	// Then: the game ends and both identities get an outcome
	require.NotNil(t, result.Win)
	assert.Equal(t, "alice", result.WinnerName)

	assert.Eventually(t, func() bool {
		return len(statsRepo.recorded("user-1")) == 1 && len(statsRepo.recorded("user-2")) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{entity.OutcomeWin}, statsRepo.recorded("user-1"))
	assert.Equal(t, []string{entity.OutcomeLoss}, statsRepo.recorded("user-2"))
}

func TestGameManager_DeleteGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Participant deletes the room everywhere", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager(t)

		_, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "s1", "ABC123")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, ok := roomRepo.stored("ABC123")
			return ok
		}, time.Second, 10*time.Millisecond)

		require.NoError(t, manager.DeleteGame(ctx, "ABC123", "user-1"))

		_, ok := roomRepo.stored("ABC123")
		assert.False(t, ok)

		games, err := manager.MyGames(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, games)
	})

	t.Run("Outsider may not delete", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager(t)

		_, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "s1", "ABC123")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, ok := roomRepo.stored("ABC123")
			return ok
		}, time.Second, 10*time.Millisecond)

		err = manager.DeleteGame(ctx, "ABC123", "user-9")
		assert.ErrorIs(t, err, apperror.ErrNotSeated)
	})

	t.Run("Unknown room reports not found", func(t *testing.T) {
		manager, _, _, _ := newTestManager(t)

		err := manager.DeleteGame(ctx, "NOSUCH", "user-1")
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Stale handle can neither play on nor resurrect a deleted room", func(t *testing.T) {
		manager, roomRepo, _, _ := newTestManager(t)

		// Given: both players seated, one of them keeping the room handle
		activeRoom, _, err := manager.JoinRoom(ctx, &service.Identity{UserID: "user-1", Name: "alice"}, "s1", "ABC123")
		require.NoError(t, err)
		_, _, err = manager.JoinRoom(ctx, &service.Identity{UserID: "user-2", Name: "bob"}, "s2", "ABC123")
		require.NoError(t, err)

		// both join writes must land before the delete, or a straggler
		// would be indistinguishable from a resurrection
		require.Eventually(t, func() bool {
			snapshot, ok := roomRepo.stored("ABC123")
			return ok && len(snapshot.Players) == 2
		}, time.Second, 10*time.Millisecond)

		// When: the other player deletes the game
		require.NoError(t, manager.DeleteGame(ctx, "ABC123", "user-2"))

		// Then: moves through the stale handle are rejected
		_, err = manager.MakeMove(activeRoom, entity.SymbolX, 0, nil)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)

		_, err = manager.ResetGame(activeRoom)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)

		// And: no background write brings the snapshot back
		assert.Never(t, func() bool {
			_, ok := roomRepo.stored("ABC123")
			return ok
		}, 300*time.Millisecond, 25*time.Millisecond)
	})
}

func TestGameManager_CreateRoomCode(t *testing.T) {
	ctx := context.Background()
	manager, _, _, _ := newTestManager(t)

	code, err := manager.CreateRoomCode(ctx)

	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}
