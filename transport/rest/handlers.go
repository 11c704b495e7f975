package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
)

const defaultHighscoreLimit = 10

type gameQueries interface {
	CreateRoomCode(ctx context.Context) (string, error)
	DeleteGame(ctx context.Context, code, userID string) error
	MyGames(ctx context.Context, userID string) ([]entity.RoomSnapshot, error)
	PlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error)
	TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error)
}

type tokenIssuer interface {
	GenerateToken(userID, name string) (string, error)
}

type Handlers struct {
	logger *slog.Logger
	games  gameQueries
	tokens tokenIssuer
}

func NewHandlers(logger *slog.Logger, games gameQueries, tokens tokenIssuer) *Handlers {
	return &Handlers{
		logger: logger.With("component", "rest_handlers"),
		games:  games,
		tokens: tokens,
	}
}

func (that *Handlers) Register(router *echo.Echo) {
	router.GET("/ping", that.Ping)

	router.POST("/api/auth/guest", that.GuestToken)
	router.POST("/api/rooms", that.CreateRoom)
	router.DELETE("/api/rooms/:code", that.DeleteRoom)
	router.GET("/api/highscores", that.Highscores)
	router.GET("/api/players/:id/stats", that.PlayerStats)
	router.GET("/api/players/:id/games", that.PlayerGames)
}

func (that *Handlers) Ping(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "pong")
}

// GuestToken issues a credential for a fresh guest identity so the same
// player can resume games across connections.
func (that *Handlers) GuestToken(ctx echo.Context) error {
	log := that.logger.With("method", "GuestToken")

	var req struct {
		Username string `json:"username"`
	}

	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"message": "malformed body"})
	}

	userID := "guest-" + uuid.NewString()

	username := req.Username
	if username == "" {
		username = "Guest-" + userID[6:10]
	}

	token, err := that.tokens.GenerateToken(userID, username)
	if err != nil {
		log.Error("failed to generate token", "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to generate token"})
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"token":    token,
		"userId":   userID,
		"username": username,
	})
}

// CreateRoom pre-allocates an unused room code. The caller still joins over
// the socket.
func (that *Handlers) CreateRoom(ctx echo.Context) error {
	log := that.logger.With("method", "CreateRoom")

	code, err := that.games.CreateRoomCode(ctx.Request().Context())
	if err != nil {
		log.Error("failed to allocate room code", "error", err)
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"message": "failed to allocate room code"})
	}

	return ctx.JSON(http.StatusCreated, echo.Map{"roomCode": code})
}

func (that *Handlers) DeleteRoom(ctx echo.Context) error {
	log := that.logger.With("method", "DeleteRoom")

	code := ctx.Param("code")
	userID := ctx.QueryParam("userId")

	if userID == "" {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"message": "userId is required"})
	}

	err := that.games.DeleteGame(ctx.Request().Context(), code, userID)

	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return ctx.JSON(http.StatusNotFound, echo.Map{"message": "room not found"})
	case errors.Is(err, apperror.ErrNotSeated):
		return ctx.JSON(http.StatusForbidden, echo.Map{"message": "not a participant of this room"})
	case err != nil:
		log.Error("failed to delete room", "code", code, "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to delete room"})
	}

	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (that *Handlers) Highscores(ctx echo.Context) error {
	log := that.logger.With("method", "Highscores")

	limit := defaultHighscoreLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"message": "limit must be a positive integer"})
		}

		limit = parsed
	}

	top, err := that.games.TopPlayers(ctx.Request().Context(), limit)
	if err != nil {
		log.Error("failed to load highscores", "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to load highscores"})
	}

	return ctx.JSON(http.StatusOK, echo.Map{"topPlayers": top})
}

func (that *Handlers) PlayerStats(ctx echo.Context) error {
	log := that.logger.With("method", "PlayerStats")

	stats, err := that.games.PlayerStats(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		log.Error("failed to load player stats", "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to load player stats"})
	}

	return ctx.JSON(http.StatusOK, echo.Map{"stats": stats})
}

func (that *Handlers) PlayerGames(ctx echo.Context) error {
	log := that.logger.With("method", "PlayerGames")

	games, err := that.games.MyGames(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		log.Error("failed to load games", "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to load games"})
	}

	if games == nil {
		games = []entity.RoomSnapshot{}
	}

	return ctx.JSON(http.StatusOK, echo.Map{"games": games})
}
