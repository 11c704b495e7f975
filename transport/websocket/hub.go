package websocket

import (
	"log/slog"
	"sync"

	"github.com/playtrio/tictactoe-backend/internal/entity"
)

// hub tracks live sessions by their connection handle so room-wide events
// can be fanned out to every seated connection.
type hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:   logger.With("component", "hub"),
		sessions: make(map[string]*session),
	}
}

func (that *hub) add(sess *session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[sess.socketRef] = sess
}

func (that *hub) remove(socketRef string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, socketRef)
}

// broadcast sends one event to every connected seat of the snapshot.
func (that *hub) broadcast(snapshot entity.RoomSnapshot, action string, payload any) {
	for i := range snapshot.Players {
		seat := snapshot.Players[i]
		if !seat.IsConnected() {
			continue
		}

		that.mu.RLock()
		sess, ok := that.sessions[seat.SocketRef]
		that.mu.RUnlock()

		if !ok {
			that.logger.Warn("no session for connected seat", "socketRef", seat.SocketRef)
			continue
		}

		if err := sess.send(action, payload); err != nil {
			that.logger.Error("failed to fan out event", "action", action, "error", err)
		}
	}
}

// broadcastState fans out a full-state frame to every connected seat. Each
// session drops the frame when it already wrote a newer snapshot of the room,
// so interleaved broadcasts never rewind a client's view.
func (that *hub) broadcastState(snapshot entity.RoomSnapshot) {
	for i := range snapshot.Players {
		seat := snapshot.Players[i]
		if !seat.IsConnected() {
			continue
		}

		that.mu.RLock()
		sess, ok := that.sessions[seat.SocketRef]
		that.mu.RUnlock()

		if !ok {
			that.logger.Warn("no session for connected seat", "socketRef", seat.SocketRef)
			continue
		}

		if err := sess.sendStateUpdate(snapshot); err != nil {
			that.logger.Error("failed to fan out state", "code", snapshot.RoomCode, "error", err)
		}
	}
}
