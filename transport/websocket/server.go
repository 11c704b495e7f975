package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/room"
	"github.com/playtrio/tictactoe-backend/internal/service"
)

// gameManager is the slice of the application core the socket layer drives.
type gameManager interface {
	ResolveIdentity(ctx context.Context, token, customUsername string) (*service.Identity, error)
	JoinRoom(ctx context.Context, identity *service.Identity, socketRef, code string) (*room.Room, entity.Player, error)
	MakeMove(activeRoom *room.Room, symbol string, cellIndex int, fromCell *int) (*room.MoveResult, error)
	ResetGame(activeRoom *room.Room) (entity.RoomSnapshot, error)
	ResetScore(activeRoom *room.Room) (entity.RoomSnapshot, error)
	ChangeColor(activeRoom *room.Room, actingSymbol, symbol, hexColor string) (entity.RoomSnapshot, error)
	ChangeUsername(ctx context.Context, activeRoom *room.Room, userID, newUsername string) (entity.RoomSnapshot, error)
	MarkDisconnected(activeRoom *room.Room, socketRef string) (string, bool)
	DeleteGame(ctx context.Context, code, userID string) error
	MyGames(ctx context.Context, userID string) ([]entity.RoomSnapshot, error)
	PlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error)
	TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error)
}

type Server struct {
	logger  *slog.Logger
	manager gameManager
	hub     *hub

	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, manager gameManager) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		hub:     newHub(logger),

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browser clients connect from a separately hosted frontend
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves websocket upgrades on /ws until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down socket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	connection, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	sess := newSession(that.logger, that.manager, that.hub, connection)

	log.Info("connection established", "socketRef", sess.socketRef)

	sess.run(ctx)
}
