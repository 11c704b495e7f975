package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Server struct {
	logger   *slog.Logger
	handlers *Handlers
}

func NewServer(logger *slog.Logger, handlers *Handlers) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		handlers: handlers,
	}
}

// Start serves the REST API until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true

	that.handlers.Register(router)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := router.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down rest server", "error", err)
		}
	}()

	if err := router.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
