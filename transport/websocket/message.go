package websocket

import (
	"encoding/json"

	"github.com/playtrio/tictactoe-backend/internal/entity"
)

// Message is the envelope every frame carries in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound actions.
const (
	actionLogin          = "login"
	actionJoinRoom       = "joinRoom"
	actionMakeMove       = "makeMove"
	actionResetGame      = "resetGame"
	actionResetScore     = "resetScore"
	actionChangeColor    = "changeColor"
	actionChangeUsername = "changeUsername"
	actionGetHighscores  = "getHighscores"
	actionGetPlayerStats = "getPlayerStats"
	actionGetMyGames     = "getMyGames"
	actionDeleteGame     = "deleteGame"
)

// Outbound actions.
const (
	actionLoginResponse      = "loginResponse"
	actionRoomJoined         = "roomJoined"
	actionGameStateUpdate    = "gameStateUpdate"
	actionGameOver           = "gameOver"
	actionColorChanged       = "colorChanged"
	actionUsernameChanged    = "usernameChanged"
	actionPlayerDisconnected = "playerDisconnected"
	actionGameDeleted        = "gameDeleted"
	actionError              = "error"
	actionHighscoresUpdate   = "highscoresUpdate"
	actionPlayerStatsUpdate  = "playerStatsUpdate"
	actionMyGamesUpdate      = "myGamesUpdate"
	actionDeleteGameResponse = "deleteGameResponse"
)

type loginRequest struct {
	Token          string `json:"token"`
	CustomUsername string `json:"customUsername,omitempty"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode,omitempty"`
}

type makeMoveRequest struct {
	CellIndex int  `json:"cellIndex"`
	FromIndex *int `json:"fromIndex,omitempty"`
}

type changeColorRequest struct {
	Piece string `json:"piece"`
	Color string `json:"color"`
}

type changeUsernameRequest struct {
	NewUsername string `json:"newUsername"`
}

type playerStatsRequest struct {
	UserID string `json:"userId"`
}

type myGamesRequest struct {
	UserID string `json:"userId"`
}

type deleteGameRequest struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type loginResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	NeedsRoom bool   `json:"needsRoom,omitempty"`
	Username  string `json:"username,omitempty"`
	Player    string `json:"player,omitempty"`
	RoomCode  string `json:"roomCode,omitempty"`
}

type roomJoinedResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode,omitempty"`
	Message  string `json:"message,omitempty"`
}

// playerView is the seat as clients see it. Connection handles and raw
// identities stay server-side.
type playerView struct {
	Username  string `json:"username"`
	Symbol    string `json:"symbol"`
	Connected bool   `json:"connected"`
}

type gameStateUpdate struct {
	RoomCode      string              `json:"roomCode"`
	Players       []playerView        `json:"players"`
	Board         [9]string           `json:"board"`
	CurrentPlayer string              `json:"currentPlayer"`
	GameActive    bool                `json:"gameActive"`
	Scores        entity.Scores       `json:"scores"`
	PiecesPlaced  entity.PiecesPlaced `json:"piecesPlaced"`
	GamePhase     string              `json:"gamePhase"`
	MaxPieces     int                 `json:"maxPieces"`
	PieceColors   entity.PieceColors  `json:"pieceColors"`
}

type gameOverResponse struct {
	Winner     string        `json:"winner,omitempty"`
	WinnerName string        `json:"winnerName,omitempty"`
	Pattern    *[3]int       `json:"pattern,omitempty"`
	Board      [9]string     `json:"board"`
	Scores     entity.Scores `json:"scores"`
	GamePhase  string        `json:"gamePhase"`
	Draw       bool          `json:"draw,omitempty"`
}

type colorChangedResponse struct {
	Piece string `json:"piece"`
	Color string `json:"color"`
}

type usernameChangedResponse struct {
	Success     bool   `json:"success"`
	NewUsername string `json:"newUsername,omitempty"`
	Message     string `json:"message,omitempty"`
}

type playerDisconnectedNotice struct {
	Username string `json:"username"`
}

type gameDeletedNotice struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type highscoresUpdate struct {
	TopPlayers []entity.PlayerStats `json:"topPlayers"`
}

type playerStatsUpdate struct {
	Stats *entity.PlayerStats `json:"stats"`
}

type gameSummary struct {
	RoomCode     string       `json:"roomCode"`
	Players      []playerView `json:"players"`
	GamePhase    string       `json:"gamePhase"`
	LastActivity string       `json:"lastActivity"`
}

type myGamesUpdate struct {
	Games []gameSummary `json:"games"`
}

type deleteGameResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func newGameStateUpdate(snapshot entity.RoomSnapshot) gameStateUpdate {
	return gameStateUpdate{
		RoomCode:      snapshot.RoomCode,
		Players:       playerViews(snapshot.Players),
		Board:         snapshot.Board,
		CurrentPlayer: snapshot.CurrentPlayer,
		GameActive:    snapshot.GameActive,
		Scores:        snapshot.Scores,
		PiecesPlaced:  snapshot.PiecesPlaced,
		GamePhase:     snapshot.GamePhase,
		MaxPieces:     snapshot.MaxPieces,
		PieceColors:   snapshot.PieceColors,
	}
}

func playerViews(players []entity.Player) []playerView {
	views := make([]playerView, 0, len(players))
	for i := range players {
		views = append(views, playerView{
			Username:  players[i].Username,
			Symbol:    players[i].Symbol,
			Connected: players[i].IsConnected(),
		})
	}

	return views
}
