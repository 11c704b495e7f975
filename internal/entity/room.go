package entity

import "time"

const (
	PhasePlacement = "placement"
	PhaseMovement  = "movement"

	DefaultColorX = "#FF0000"
	DefaultColorO = "#0000FF"
)

type Scores struct {
	X    int `json:"X"`
	O    int `json:"O"`
	Draw int `json:"draw"`
}

type PiecesPlaced struct {
	X int `json:"X"`
	O int `json:"O"`
}

type PieceColors struct {
	X string `json:"X"`
	O string `json:"O"`
}

// RoomSnapshot is the full serializable state of a room at a point in time.
// It is both the persisted document and the payload broadcast to clients.
// Version increases with every committed mutation, so two snapshots of the
// same room are ordered even when they travel on different goroutines.
type RoomSnapshot struct {
	RoomCode      string       `json:"roomCode"`
	Version       uint64       `json:"version"`
	Players       []Player     `json:"players"`
	Board         [9]string    `json:"board"`
	CurrentPlayer string       `json:"currentPlayer"`
	GameActive    bool         `json:"gameActive"`
	Scores        Scores       `json:"scores"`
	PiecesPlaced  PiecesPlaced `json:"piecesPlaced"`
	GamePhase     string       `json:"gamePhase"`
	MaxPieces     int          `json:"maxPieces"`
	PieceColors   PieceColors  `json:"pieceColors"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastActivity  time.Time    `json:"lastActivity"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

func (that *RoomSnapshot) PlayerBySymbol(symbol string) *Player {
	for i := range that.Players {
		if that.Players[i].Symbol == symbol {
			return &that.Players[i]
		}
	}

	return nil
}

func (that *RoomSnapshot) PlayerByUserID(userID string) *Player {
	if userID == "" {
		return nil
	}

	for i := range that.Players {
		if that.Players[i].UserID == userID {
			return &that.Players[i]
		}
	}

	return nil
}
