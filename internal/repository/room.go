package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix   = "room:"
	allRoomsKey     = "rooms"
	userRoomsPrefix = "user_rooms:"
)

// RetentionPolicy drives the periodic snapshot sweep. Completed games are
// kept for a while so "my games" stays useful; the shared default room is
// cleaned much more aggressively.
type RetentionPolicy struct {
	CompletedAfter   time.Duration
	InactiveAfter    time.Duration
	DefaultRoomAfter time.Duration
	DefaultRoomCode  string
}

type RoomRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *entity.RoomSnapshot) error
	LoadRoomSnapshot(ctx context.Context, code string) (*entity.RoomSnapshot, error)
	DeleteSnapshot(ctx context.Context, code string) error
	ListActiveByUser(ctx context.Context, userID string) ([]entity.RoomSnapshot, error)
	CleanupOldSnapshots(ctx context.Context, now time.Time, policy RetentionPolicy) (int, error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

// SaveSnapshot upserts the snapshot document keyed by room code and keeps
// the per-user room indexes in sync.
func (that *dbRoom) SaveSnapshot(ctx context.Context, snapshot *entity.RoomSnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal room snapshot: %w", err)
	}

	roomKey := roomKeyPrefix + snapshot.RoomCode
	if err = that.client.Set(ctx, roomKey, snapshotJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room snapshot: %w", err)
	}

	if err = that.client.SAdd(ctx, allRoomsKey, snapshot.RoomCode).Err(); err != nil {
		return fmt.Errorf("failed to index room: %w", err)
	}

	for i := range snapshot.Players {
		userID := snapshot.Players[i].UserID
		if userID == "" {
			continue
		}

		if err = that.client.SAdd(ctx, userRoomsPrefix+userID, snapshot.RoomCode).Err(); err != nil {
			return fmt.Errorf("failed to index room for user: %w", err)
		}
	}

	return nil
}

func (that *dbRoom) LoadRoomSnapshot(ctx context.Context, code string) (*entity.RoomSnapshot, error) {
	response, err := that.client.Get(ctx, roomKeyPrefix+code).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room snapshot: %w", err)
	}

	var snapshot entity.RoomSnapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
	}

	return &snapshot, nil
}

func (that *dbRoom) DeleteSnapshot(ctx context.Context, code string) error {
	snapshot, err := that.LoadRoomSnapshot(ctx, code)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to load room snapshot: %w", err)
	}

	for i := range snapshot.Players {
		userID := snapshot.Players[i].UserID
		if userID == "" {
			continue
		}

		if err = that.client.SRem(ctx, userRoomsPrefix+userID, code).Err(); err != nil {
			return fmt.Errorf("failed to unindex room for user: %w", err)
		}
	}

	if err = that.client.SRem(ctx, allRoomsKey, code).Err(); err != nil {
		return fmt.Errorf("failed to unindex room: %w", err)
	}

	if err = that.client.Del(ctx, roomKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("failed to delete room snapshot: %w", err)
	}

	return nil
}

// ListActiveByUser returns the snapshots of the user's still-active games,
// most recently touched first.
func (that *dbRoom) ListActiveByUser(ctx context.Context, userID string) ([]entity.RoomSnapshot, error) {
	codes, err := that.client.SMembers(ctx, userRoomsPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for user: %w", err)
	}

	var games []entity.RoomSnapshot
	for _, code := range codes {
		snapshot, err := that.LoadRoomSnapshot(ctx, code)
		if errors.Is(err, apperror.ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load room snapshot: %w", err)
		}

		if snapshot.GameActive {
			games = append(games, *snapshot)
		}
	}

	sort.Slice(games, func(i, j int) bool {
		return games[i].LastActivity.After(games[j].LastActivity)
	})

	return games, nil
}

// CleanupOldSnapshots deletes snapshots past their retention windows and
// returns how many were removed.
func (that *dbRoom) CleanupOldSnapshots(ctx context.Context, now time.Time, policy RetentionPolicy) (int, error) {
	codes, err := that.client.SMembers(ctx, allRoomsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list rooms: %w", err)
	}

	deleted := 0
	for _, code := range codes {
		snapshot, err := that.LoadRoomSnapshot(ctx, code)
		if errors.Is(err, apperror.ErrNotFound) {
			continue
		}

		if err != nil {
			return deleted, fmt.Errorf("failed to load room snapshot: %w", err)
		}

		if !that.isExpired(snapshot, now, policy) {
			continue
		}

		if err = that.DeleteSnapshot(ctx, code); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return deleted, fmt.Errorf("failed to delete room snapshot: %w", err)
		}

		deleted++
	}

	return deleted, nil
}

func (that *dbRoom) isExpired(snapshot *entity.RoomSnapshot, now time.Time, policy RetentionPolicy) bool {
	if snapshot.RoomCode == policy.DefaultRoomCode {
		return now.Sub(snapshot.LastActivity) > policy.DefaultRoomAfter
	}

	if !snapshot.GameActive && snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > policy.CompletedAfter {
		return true
	}

	return now.Sub(snapshot.LastActivity) > policy.InactiveAfter
}
