package entity

import "time"

const (
	SymbolX = "X"
	SymbolO = "O"

	EmptyCell = ""
)

// Player is one seat in a room. The seat survives disconnects: SocketRef is
// cleared while the identity, symbol and score association stay in place.
type Player struct {
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username"`
	Symbol    string    `json:"symbol"`
	SocketRef string    `json:"socketRef,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
}

func (that *Player) IsConnected() bool {
	return that.SocketRef != ""
}
