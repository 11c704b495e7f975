package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/playtrio/tictactoe-backend/internal/config"
	"github.com/playtrio/tictactoe-backend/internal/repository"
	"github.com/playtrio/tictactoe-backend/internal/repository/storage"
	"github.com/playtrio/tictactoe-backend/internal/room"
	"github.com/playtrio/tictactoe-backend/internal/service"
	"github.com/playtrio/tictactoe-backend/internal/tictactoe"
	"github.com/playtrio/tictactoe-backend/internal/usecase"
	"github.com/playtrio/tictactoe-backend/transport/rest"
	"github.com/playtrio/tictactoe-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp wires storage, repositories, the game core and both transports,
// then blocks until a shutdown signal or a server failure.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	roomRepo := repository.NewRoomRepository(redisStorage.Connection)
	statsRepo := repository.NewStatsRepository(sqliteStorage.Connection)
	userRepo := repository.NewUserRepository(sqliteStorage.Connection)

	authService := service.NewAuthService(conf.JWTSecretKey)

	movementRule := conf.Game.MovementRule
	if movementRule != tictactoe.MovementAdjacent {
		movementRule = tictactoe.MovementAny
	}

	registry := room.NewRegistry(logger, roomRepo, room.RegistryOptions{
		Room: room.Options{
			MaxPieces:    conf.Game.MaxPieces,
			MovementRule: movementRule,
		},
		DefaultRoomCode:  conf.Game.DefaultRoomCode,
		RoomGrace:        conf.Game.RoomGrace,
		DefaultRoomGrace: conf.Game.DefaultRoomGrace,
	})

	gameManager := usecase.NewGameManager(
		logger,
		registry,
		roomRepo,
		statsRepo,
		userRepo,
		authService,
		conf.Game.DefaultRoomCode,
	)

	go gameManager.RunMaintenance(ctx)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)

		restHandlers := rest.NewHandlers(logger, gameManager, authService)
		if httpErr := rest.NewServer(logger, restHandlers).Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)

		if wsErr := websocket.New(logger, gameManager).Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
