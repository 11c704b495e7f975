package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/room"
	"github.com/playtrio/tictactoe-backend/internal/service"
)

// conn is the slice of a websocket connection a session needs. The real
// implementation is a gorilla connection.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1

// session is the per-connection coordinator. It walks the connection
// through login and room selection and then relays game commands.
//
// State fields are only touched by the session's own read loop; writeMu
// serializes frame writes because broadcasts arrive from other sessions'
// loops.
type session struct {
	logger  *slog.Logger
	manager gameManager
	hub     *hub
	conn    conn

	writeMu sync.Mutex

	// highest state frame written so far, guarded by writeMu; broadcasts
	// racing in from other sessions' loops may carry older snapshots
	lastStateRoom    string
	lastStateVersion uint64

	socketRef string
	identity  *service.Identity
	symbol    string
	seated    *room.Room

	// room requested before login finished; joined as soon as the
	// identity resolves
	pendingRoomCode string
	pendingRoom     bool
}

func newSession(logger *slog.Logger, manager gameManager, hub *hub, connection conn) *session {
	socketRef := uuid.NewString()

	return &session{
		logger:    logger.With("component", "session", "socketRef", socketRef),
		manager:   manager,
		hub:       hub,
		conn:      connection,
		socketRef: socketRef,
	}
}

// run pumps inbound frames until the connection drops, then tears the
// session down.
func (that *session) run(ctx context.Context) {
	that.hub.add(that)

	defer func() {
		that.teardown()
		that.conn.Close()
	}()

	for {
		_, raw, err := that.conn.ReadMessage()
		if err != nil {
			that.logger.Info("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			that.logger.Error("failed to unmarshal message", "error", err)
			that.sendError("malformed message")

			continue
		}

		that.dispatch(ctx, &message)
	}
}

func (that *session) dispatch(ctx context.Context, message *Message) {
	var err error

	switch message.Action {
	case actionLogin:
		err = that.handleLogin(ctx, message)
	case actionJoinRoom:
		err = that.handleJoinRoom(ctx, message)
	case actionMakeMove:
		err = that.handleMakeMove(message)
	case actionResetGame:
		err = that.handleResetGame()
	case actionResetScore:
		err = that.handleResetScore()
	case actionChangeColor:
		err = that.handleChangeColor(message)
	case actionChangeUsername:
		err = that.handleChangeUsername(ctx, message)
	case actionGetHighscores:
		err = that.handleGetHighscores(ctx)
	case actionGetPlayerStats:
		err = that.handleGetPlayerStats(ctx, message)
	case actionGetMyGames:
		err = that.handleGetMyGames(ctx, message)
	case actionDeleteGame:
		err = that.handleDeleteGame(ctx, message)
	default:
		that.logger.Warn("unknown action", "action", message.Action)
		that.sendError(fmt.Sprintf("unknown action: %s", message.Action))

		return
	}

	if err != nil {
		that.logger.Error("failed to handle action", "action", message.Action, "error", err)
	}
}

// teardown releases the seat's connection handle, keeping the seat itself
// so the player can resume.
func (that *session) teardown() {
	that.hub.remove(that.socketRef)

	seated := that.currentRoom()
	if seated == nil {
		return
	}

	username, ok := that.manager.MarkDisconnected(seated, that.socketRef)
	if !ok {
		return
	}

	that.hub.broadcast(seated.Snapshot(), actionPlayerDisconnected, playerDisconnectedNotice{Username: username})
}

func (that *session) send(action string, payload any) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	return that.sendLocked(action, payload)
}

// sendStateUpdate writes a full-state frame unless a newer snapshot of the
// same room already went out on this connection. The version check and the
// write share the lock, so frames cannot leapfrog between them.
func (that *session) sendStateUpdate(snapshot entity.RoomSnapshot) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if snapshot.RoomCode == that.lastStateRoom && snapshot.Version <= that.lastStateVersion {
		return nil
	}

	that.lastStateRoom = snapshot.RoomCode
	that.lastStateVersion = snapshot.Version

	return that.sendLocked(actionGameStateUpdate, newGameStateUpdate(snapshot))
}

func (that *session) sendLocked(action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	frame, err := json.Marshal(Message{Action: action, Payload: body})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err = that.conn.WriteMessage(textMessage, frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// currentRoom returns the seat's room, unbinding the session first when the
// room was deleted out from under it.
func (that *session) currentRoom() *room.Room {
	if that.seated != nil && that.seated.IsDeleted() {
		that.seated = nil
		that.symbol = ""
	}

	return that.seated
}

func (that *session) roomCode() string {
	if that.seated == nil {
		return ""
	}

	return that.seated.Code()
}

func (that *session) sendError(message string) {
	if err := that.send(actionError, errorResponse{Message: message}); err != nil {
		that.logger.Error("failed to send error response", "error", err)
	}
}
