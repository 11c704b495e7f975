package entity

import "time"

const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// PlayerStats are cumulative match outcomes for one stable identity,
// aggregated across rooms. They outlive any single room.
type PlayerStats struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Draws      int       `json:"draws"`
	TotalGames int       `json:"totalGames"`
	WinRate    int       `json:"winRate"`
	LastPlayed time.Time `json:"lastPlayed"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
