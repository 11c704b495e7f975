package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/repository"
	"github.com/playtrio/tictactoe-backend/internal/room"
	"github.com/playtrio/tictactoe-backend/internal/service"
)

const (
	persistTimeout = 5 * time.Second

	evictInterval = time.Minute
	sweepInterval = time.Hour

	completedRetention   = 7 * 24 * time.Hour
	inactiveRetention    = 30 * 24 * time.Hour
	defaultRoomRetention = 24 * time.Hour
)

type roomRepo interface {
	SaveSnapshot(ctx context.Context, snapshot *entity.RoomSnapshot) error
	LoadRoomSnapshot(ctx context.Context, code string) (*entity.RoomSnapshot, error)
	DeleteSnapshot(ctx context.Context, code string) error
	ListActiveByUser(ctx context.Context, userID string) ([]entity.RoomSnapshot, error)
	CleanupOldSnapshots(ctx context.Context, now time.Time, policy repository.RetentionPolicy) (int, error)
}

type statsRepo interface {
	RecordOutcome(ctx context.Context, userID, username, outcome string) error
	GetPlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error)
	TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error)
}

type userRepo interface {
	Save(ctx context.Context, user *entity.User) error
	Find(ctx context.Context, id string) (*entity.User, error)
}

type authService interface {
	VerifyToken(tokenString string) (*service.Identity, error)
}

// GameManager glues the live registry to the persistence gateway: it joins
// identities into rooms, applies commands, schedules best-effort snapshot
// writes and turns terminal games into leaderboard records.
type GameManager struct {
	logger *slog.Logger

	registry  *room.Registry
	roomRepo  roomRepo
	statsRepo statsRepo
	userRepo  userRepo
	auth      authService

	defaultRoomCode string
}

func NewGameManager(
	logger *slog.Logger,
	registry *room.Registry,
	roomRepo roomRepo,
	statsRepo statsRepo,
	userRepo userRepo,
	auth authService,
	defaultRoomCode string,
) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game_manager"),

		registry:  registry,
		roomRepo:  roomRepo,
		statsRepo: statsRepo,
		userRepo:  userRepo,
		auth:      auth,

		defaultRoomCode: defaultRoomCode,
	}
}

// ResolveIdentity turns a login credential into a canonical identity. An
// empty token yields a fresh guest; a customUsername both overrides and
// updates the stored display name.
func (that *GameManager) ResolveIdentity(ctx context.Context, token, customUsername string) (*service.Identity, error) {
	log := that.logger.With("method", "ResolveIdentity")

	if token == "" {
		guest := &service.Identity{
			UserID: "guest-" + uuid.NewString(),
			Name:   customUsername,
		}

		if guest.Name == "" {
			guest.Name = "Guest-" + strings.ToUpper(guest.UserID[6:10])
		}

		return guest, nil
	}

	identity, err := that.auth.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	if customUsername != "" {
		identity.Name = customUsername
	} else if stored, err := that.userRepo.Find(ctx, identity.UserID); err == nil {
		identity.Name = stored.Username
	} else if !errors.Is(err, apperror.ErrNotFound) {
		log.Error("failed to look up stored username", "error", err)
	}

	if identity.Name == "" {
		identity.Name = "Player-" + strings.ToUpper(uuid.NewString()[:4])
	}

	if err = that.userRepo.Save(ctx, &entity.User{ID: identity.UserID, Username: identity.Name}); err != nil {
		log.Error("failed to store username", "error", err)
	}

	return identity, nil
}

// JoinRoom seats the identity in the room behind code, creating or
// restoring the room as needed. An empty code means the default quick-play
// room.
func (that *GameManager) JoinRoom(ctx context.Context, identity *service.Identity, socketRef, code string) (*room.Room, entity.Player, error) {
	if code == "" {
		code = that.defaultRoomCode
	}

	joined, err := that.registry.GetOrCreate(ctx, code)
	if err != nil {
		return nil, entity.Player{}, fmt.Errorf("failed to get or create room: %w", err)
	}

	player, err := joined.Join(identity.UserID, identity.Name, socketRef)
	if err != nil {
		return nil, entity.Player{}, err
	}

	that.persistAsync(joined.Snapshot())

	return joined, player, nil
}

// MakeMove applies one move and, when it ends the game, records the match
// outcome for both seated identities.
func (that *GameManager) MakeMove(activeRoom *room.Room, symbol string, cellIndex int, fromCell *int) (*room.MoveResult, error) {
	result, err := activeRoom.ApplyMove(symbol, cellIndex, fromCell)
	if err != nil {
		return nil, err
	}

	that.persistAsync(result.Snapshot)

	if result.IsTerminal() {
		that.recordOutcomes(result)
	}

	return result, nil
}

func (that *GameManager) ResetGame(activeRoom *room.Room) (entity.RoomSnapshot, error) {
	snapshot, err := activeRoom.ResetGame()
	if err != nil {
		return entity.RoomSnapshot{}, err
	}

	that.persistAsync(snapshot)

	return snapshot, nil
}

func (that *GameManager) ResetScore(activeRoom *room.Room) (entity.RoomSnapshot, error) {
	snapshot, err := activeRoom.ResetScore()
	if err != nil {
		return entity.RoomSnapshot{}, err
	}

	that.persistAsync(snapshot)

	return snapshot, nil
}

func (that *GameManager) ChangeColor(activeRoom *room.Room, actingSymbol, symbol, hexColor string) (entity.RoomSnapshot, error) {
	snapshot, err := activeRoom.ChangeColor(actingSymbol, symbol, hexColor)
	if err != nil {
		return entity.RoomSnapshot{}, err
	}

	that.persistAsync(snapshot)

	return snapshot, nil
}

func (that *GameManager) ChangeUsername(ctx context.Context, activeRoom *room.Room, userID, newUsername string) (entity.RoomSnapshot, error) {
	log := that.logger.With("method", "ChangeUsername")

	snapshot, err := activeRoom.ChangeUsername(userID, newUsername)
	if err != nil {
		return entity.RoomSnapshot{}, err
	}

	if !strings.HasPrefix(userID, "guest-") {
		if err = that.userRepo.Save(ctx, &entity.User{ID: userID, Username: newUsername}); err != nil {
			log.Error("failed to store username", "error", err)
		}
	}

	that.persistAsync(snapshot)

	return snapshot, nil
}

// MarkDisconnected clears the seat's connection handle and persists the
// room so a later restore knows the player was last seen just now.
func (that *GameManager) MarkDisconnected(activeRoom *room.Room, socketRef string) (string, bool) {
	username, ok := activeRoom.MarkDisconnected(socketRef)
	if ok {
		that.persistAsync(activeRoom.Snapshot())
	}

	return username, ok
}

// DeleteGame removes a room on behalf of one of its participants, both from
// the live registry and from the store.
func (that *GameManager) DeleteGame(ctx context.Context, code, userID string) error {
	snapshot, err := that.roomRepo.LoadRoomSnapshot(ctx, code)
	if errors.Is(err, apperror.ErrNotFound) {
		if liveRoom, ok := that.registry.Get(code); ok {
			liveSnapshot := liveRoom.Snapshot()
			snapshot = &liveSnapshot
		} else {
			return apperror.ErrRoomNotFound
		}
	} else if err != nil {
		return fmt.Errorf("failed to load room snapshot: %w", err)
	}

	if snapshot.PlayerByUserID(userID) == nil {
		return apperror.ErrNotSeated
	}

	// Retire the live object before unregistering it: peers still holding
	// the handle must not be able to play on or re-persist the room.
	if liveRoom, ok := that.registry.Get(code); ok {
		liveRoom.MarkDeleted()
	}

	that.registry.Delete(code)

	if err = that.roomRepo.DeleteSnapshot(ctx, code); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("failed to delete room snapshot: %w", err)
	}

	return nil
}

func (that *GameManager) CreateRoomCode(ctx context.Context) (string, error) {
	code, err := that.registry.GenerateCode(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}

	return code, nil
}

func (that *GameManager) MyGames(ctx context.Context, userID string) ([]entity.RoomSnapshot, error) {
	games, err := that.roomRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	return games, nil
}

func (that *GameManager) PlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error) {
	stats, err := that.statsRepo.GetPlayerStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}

	return stats, nil
}

func (that *GameManager) TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error) {
	players, err := that.statsRepo.TopPlayers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}

	return players, nil
}

// RunMaintenance drives the idle-room eviction and the snapshot retention
// sweep until ctx is canceled.
func (that *GameManager) RunMaintenance(ctx context.Context) {
	log := that.logger.With("method", "RunMaintenance")

	evictTicker := time.NewTicker(evictInterval)
	defer evictTicker.Stop()

	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-evictTicker.C:
			if evicted := that.registry.EvictIdle(now); len(evicted) > 0 {
				log.Info("evicted idle rooms", "codes", evicted)
			}
		case now := <-sweepTicker.C:
			policy := repository.RetentionPolicy{
				CompletedAfter:   completedRetention,
				InactiveAfter:    inactiveRetention,
				DefaultRoomAfter: defaultRoomRetention,
				DefaultRoomCode:  that.defaultRoomCode,
			}

			deleted, err := that.roomRepo.CleanupOldSnapshots(ctx, now, policy)
			if err != nil {
				log.Error("snapshot sweep failed", "error", err)
				continue
			}

			if deleted > 0 {
				log.Info("swept old snapshots", "deleted", deleted)
			}
		}
	}
}

// persistAsync durable-writes a snapshot without blocking gameplay.
// Failures are logged and accepted; live state stays authoritative.
func (that *GameManager) persistAsync(snapshot entity.RoomSnapshot) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := that.roomRepo.SaveSnapshot(ctx, &snapshot); err != nil {
			that.logger.Error("failed to persist room snapshot", "code", snapshot.RoomCode, "error", err)
		}
	}()
}

func (that *GameManager) recordOutcomes(result *room.MoveResult) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		log := that.logger.With("method", "recordOutcomes", "code", result.Snapshot.RoomCode)

		for i := range result.Snapshot.Players {
			seat := result.Snapshot.Players[i]
			if seat.UserID == "" {
				continue
			}

			outcome := entity.OutcomeDraw
			if result.Win != nil {
				outcome = entity.OutcomeLoss
				if seat.Symbol == result.Win.Winner {
					outcome = entity.OutcomeWin
				}
			}

			if err := that.statsRepo.RecordOutcome(ctx, seat.UserID, seat.Username, outcome); err != nil {
				log.Error("failed to record outcome", "userID", seat.UserID, "error", err)
			}
		}
	}()
}
