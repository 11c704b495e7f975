package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/room"
)

const highscoreLimit = 10

func (that *session) handleLogin(ctx context.Context, msg *Message) error {
	log := that.logger.With("method", "handleLogin")

	var req loginRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	identity, err := that.manager.ResolveIdentity(ctx, req.Token, req.CustomUsername)
	if err != nil {
		log.Error("failed to resolve identity", "error", err)

		return that.send(actionLoginResponse, loginResponse{Success: false, Message: "invalid credentials"})
	}

	that.identity = identity
	that.logger = that.logger.With("userID", identity.UserID)

	log.Info("identity resolved", "username", identity.Name)

	// a room request that raced ahead of login completes now
	if that.pendingRoom {
		code := that.pendingRoomCode
		that.pendingRoom = false
		that.pendingRoomCode = ""

		if err = that.joinRoomByCode(ctx, code); err != nil {
			return err
		}

		return that.send(actionLoginResponse, loginResponse{
			Success:  true,
			Username: identity.Name,
			Player:   that.symbol,
			RoomCode: that.roomCode(),
		})
	}

	return that.send(actionLoginResponse, loginResponse{
		Success:   true,
		NeedsRoom: true,
		Username:  identity.Name,
	})
}

func (that *session) handleJoinRoom(ctx context.Context, msg *Message) error {
	var req joinRoomRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	// joinRoom before login is a legal ordering; park the code until the
	// identity resolves
	if that.identity == nil {
		that.pendingRoomCode = req.RoomCode
		that.pendingRoom = true

		return that.send(actionRoomJoined, roomJoinedResponse{
			Success:  true,
			RoomCode: req.RoomCode,
			Message:  "room will be joined once login completes",
		})
	}

	return that.joinRoomByCode(ctx, req.RoomCode)
}

func (that *session) joinRoomByCode(ctx context.Context, code string) error {
	log := that.logger.With("method", "joinRoomByCode")

	if that.currentRoom() != nil {
		that.leaveSeatedRoom()
	}

	joined, player, err := that.manager.JoinRoom(ctx, that.identity, that.socketRef, code)
	if err != nil {
		log.Error("failed to join room", "code", code, "error", err)

		return that.send(actionRoomJoined, roomJoinedResponse{Success: false, Message: err.Error()})
	}

	that.seated = joined
	that.symbol = player.Symbol

	log.Info("player seated", "code", joined.Code(), "symbol", player.Symbol)

	if err = that.send(actionRoomJoined, roomJoinedResponse{Success: true, RoomCode: joined.Code()}); err != nil {
		return err
	}

	that.hub.broadcastState(joined.Snapshot())

	return nil
}

// leaveSeatedRoom releases the current seat's connection handle before the
// session moves to another room.
func (that *session) leaveSeatedRoom() {
	username, ok := that.manager.MarkDisconnected(that.seated, that.socketRef)
	if ok {
		that.hub.broadcast(that.seated.Snapshot(), actionPlayerDisconnected, playerDisconnectedNotice{Username: username})
	}

	that.seated = nil
	that.symbol = ""
}

func (that *session) handleMakeMove(msg *Message) error {
	var req makeMoveRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	seated := that.currentRoom()
	if seated == nil {
		that.sendError("join a room first")
		return nil
	}

	result, err := that.manager.MakeMove(seated, that.symbol, req.CellIndex, req.FromIndex)
	if err != nil {
		that.sendError(err.Error())
		return nil
	}

	that.hub.broadcastState(result.Snapshot)

	if !result.IsTerminal() {
		return nil
	}

	over := gameOverResponse{
		Board:     result.Snapshot.Board,
		Scores:    result.Snapshot.Scores,
		GamePhase: result.Snapshot.GamePhase,
		Draw:      result.Draw,
	}

	if result.Win != nil {
		over.Winner = result.Win.Winner
		over.WinnerName = result.WinnerName
		over.Pattern = &result.Win.Pattern
	}

	that.hub.broadcast(result.Snapshot, actionGameOver, over)

	return nil
}

func (that *session) handleResetGame() error {
	seated := that.currentRoom()
	if seated == nil {
		that.sendError("join a room first")
		return nil
	}

	snapshot, err := that.manager.ResetGame(seated)
	if err != nil {
		that.sendError(err.Error())
		return nil
	}

	that.hub.broadcastState(snapshot)

	return nil
}

func (that *session) handleResetScore() error {
	seated := that.currentRoom()
	if seated == nil {
		that.sendError("join a room first")
		return nil
	}

	snapshot, err := that.manager.ResetScore(seated)
	if err != nil {
		that.sendError(err.Error())
		return nil
	}

	that.hub.broadcastState(snapshot)

	return nil
}

func (that *session) handleChangeColor(msg *Message) error {
	var req changeColorRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	seated := that.currentRoom()
	if seated == nil {
		that.sendError("join a room first")
		return nil
	}

	snapshot, err := that.manager.ChangeColor(seated, that.symbol, req.Piece, req.Color)
	if err != nil {
		that.sendError(err.Error())
		return nil
	}

	that.hub.broadcast(snapshot, actionColorChanged, colorChangedResponse{Piece: req.Piece, Color: req.Color})

	return nil
}

func (that *session) handleChangeUsername(ctx context.Context, msg *Message) error {
	var req changeUsernameRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	seated := that.currentRoom()
	if seated == nil || that.identity == nil {
		that.sendError("join a room first")
		return nil
	}

	snapshot, err := that.manager.ChangeUsername(ctx, seated, that.identity.UserID, req.NewUsername)
	if err != nil {
		return that.send(actionUsernameChanged, usernameChangedResponse{Success: false, Message: err.Error()})
	}

	that.identity.Name = req.NewUsername

	if err = that.send(actionUsernameChanged, usernameChangedResponse{Success: true, NewUsername: req.NewUsername}); err != nil {
		return err
	}

	that.hub.broadcastState(snapshot)

	return nil
}

func (that *session) handleGetHighscores(ctx context.Context) error {
	top, err := that.manager.TopPlayers(ctx, highscoreLimit)
	if err != nil {
		that.sendError("failed to load highscores")
		return fmt.Errorf("failed to load highscores: %w", err)
	}

	return that.send(actionHighscoresUpdate, highscoresUpdate{TopPlayers: top})
}

func (that *session) handleGetPlayerStats(ctx context.Context, msg *Message) error {
	var req playerStatsRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	userID := req.UserID
	if userID == "" && that.identity != nil {
		userID = that.identity.UserID
	}

	if userID == "" {
		that.sendError("login first")
		return nil
	}

	stats, err := that.manager.PlayerStats(ctx, userID)
	if err != nil {
		that.sendError("failed to load player stats")
		return fmt.Errorf("failed to load player stats: %w", err)
	}

	return that.send(actionPlayerStatsUpdate, playerStatsUpdate{Stats: stats})
}

func (that *session) handleGetMyGames(ctx context.Context, msg *Message) error {
	var req myGamesRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	userID := req.UserID
	if userID == "" && that.identity != nil {
		userID = that.identity.UserID
	}

	if userID == "" {
		that.sendError("login first")
		return nil
	}

	games, err := that.manager.MyGames(ctx, userID)
	if err != nil {
		that.sendError("failed to load games")
		return fmt.Errorf("failed to load games: %w", err)
	}

	summaries := make([]gameSummary, 0, len(games))
	for i := range games {
		summaries = append(summaries, gameSummary{
			RoomCode:     games[i].RoomCode,
			Players:      playerViews(games[i].Players),
			GamePhase:    games[i].GamePhase,
			LastActivity: games[i].LastActivity.Format(time.RFC3339),
		})
	}

	return that.send(actionMyGamesUpdate, myGamesUpdate{Games: summaries})
}

func (that *session) handleDeleteGame(ctx context.Context, msg *Message) error {
	var req deleteGameRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	userID := req.UserID
	if userID == "" && that.identity != nil {
		userID = that.identity.UserID
	}

	if userID == "" {
		that.sendError("login first")
		return nil
	}

	// remaining occupants get notified from the pre-delete roster
	var occupants *room.Room
	if that.seated != nil && that.seated.Code() == req.RoomCode {
		occupants = that.seated
	}

	if err := that.manager.DeleteGame(ctx, req.RoomCode, userID); err != nil {
		return that.send(actionDeleteGameResponse, deleteGameResponse{Success: false, Message: err.Error()})
	}

	if occupants != nil {
		that.hub.broadcast(occupants.Snapshot(), actionGameDeleted, gameDeletedNotice{
			Message: fmt.Sprintf("room %s was deleted", req.RoomCode),
		})

		that.seated = nil
		that.symbol = ""
	}

	return that.send(actionDeleteGameResponse, deleteGameResponse{Success: true})
}
