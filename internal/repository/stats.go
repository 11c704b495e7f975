package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/entity"
)

var ErrUnknownOutcome = errors.New("unknown match outcome")

type StatsRepository interface {
	RecordOutcome(ctx context.Context, userID, username, outcome string) error
	GetPlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error)
	TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error)
}

type dbStats struct {
	conn *sql.DB
}

func NewStatsRepository(conn *sql.DB) StatsRepository {
	return &dbStats{
		conn: conn,
	}
}

// RecordOutcome bumps the identity's cumulative counters by one game.
func (that *dbStats) RecordOutcome(ctx context.Context, userID, username, outcome string) error {
	var wins, losses, draws int

	switch outcome {
	case entity.OutcomeWin:
		wins = 1
	case entity.OutcomeLoss:
		losses = 1
	case entity.OutcomeDraw:
		draws = 1
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOutcome, outcome)
	}

	query := `INSERT INTO player_stats (user_id, username, wins, losses, draws, total_games, last_played)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			draws = draws + excluded.draws,
			total_games = total_games + 1,
			last_played = excluded.last_played`

	if _, err := that.conn.ExecContext(ctx, query, userID, username, wins, losses, draws, time.Now()); err != nil {
		return fmt.Errorf("can't record outcome: %w", err)
	}

	return nil
}

// GetPlayerStats returns the identity's aggregates, or zeroed stats when the
// identity has never finished a game.
func (that *dbStats) GetPlayerStats(ctx context.Context, userID string) (*entity.PlayerStats, error) {
	query := `SELECT user_id, username, wins, losses, draws, total_games, last_played
		FROM player_stats WHERE user_id = ?`

	stats, err := scanStats(that.conn.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return &entity.PlayerStats{UserID: userID}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("can't get player stats: %w", err)
	}

	return stats, nil
}

// TopPlayers ranks players with at least one game by wins, breaking ties on
// win rate.
func (that *dbStats) TopPlayers(ctx context.Context, limit int) ([]entity.PlayerStats, error) {
	query := `SELECT user_id, username, wins, losses, draws, total_games, last_played
		FROM player_stats
		WHERE total_games > 0
		ORDER BY wins DESC, CAST(wins AS REAL) / total_games DESC
		LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't query top players: %w", err)
	}
	defer rows.Close()

	var players []entity.PlayerStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan player stats: %w", err)
		}

		players = append(players, *stats)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read top players: %w", err)
	}

	return players, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(row rowScanner) (*entity.PlayerStats, error) {
	var stats entity.PlayerStats
	var lastPlayed sql.NullTime

	err := row.Scan(&stats.UserID, &stats.Username, &stats.Wins, &stats.Losses, &stats.Draws, &stats.TotalGames, &lastPlayed)
	if err != nil {
		return nil, err
	}

	if lastPlayed.Valid {
		stats.LastPlayed = lastPlayed.Time
	}

	if stats.TotalGames > 0 {
		stats.WinRate = int(math.Round(float64(stats.Wins) / float64(stats.TotalGames) * 100))
	}

	return &stats, nil
}
