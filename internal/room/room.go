package room

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/internal/tictactoe"
)

const maxPlayers = 2

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]{2,20}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Options configure the rules a room plays by.
type Options struct {
	MaxPieces    int
	MovementRule string
}

// Room holds the authoritative state of one match. Every mutation is
// serialized by the room's own lock; callers get value snapshots back and
// never touch the fields directly.
type Room struct {
	mu sync.Mutex

	code          string
	version       uint64
	deleted       bool
	players       []*entity.Player
	board         [9]string
	currentPlayer string
	gameActive    bool
	scores        entity.Scores
	piecesPlaced  entity.PiecesPlaced
	gamePhase     string
	maxPieces     int
	movementRule  string
	pieceColors   entity.PieceColors
	createdAt     time.Time
	lastActivity  time.Time
	completedAt   *time.Time
}

// MoveResult describes one accepted move: the post-move snapshot plus the
// terminal outcome, if the move ended the game.
type MoveResult struct {
	Snapshot   entity.RoomSnapshot
	Win        *tictactoe.WinResult
	WinnerName string
	Draw       bool
}

func (that *MoveResult) IsTerminal() bool {
	return that.Win != nil || that.Draw
}

func New(code string, opts Options) *Room {
	now := time.Now()

	return &Room{
		code:          code,
		currentPlayer: entity.SymbolX,
		gameActive:    true,
		gamePhase:     entity.PhasePlacement,
		maxPieces:     opts.MaxPieces,
		movementRule:  opts.MovementRule,
		pieceColors:   entity.PieceColors{X: entity.DefaultColorX, O: entity.DefaultColorO},
		createdAt:     now,
		lastActivity:  now,
	}
}

// Restore rebuilds a room from a persisted snapshot. All connection handles
// come back null; players rebind through Join's reconnect path.
func Restore(snapshot *entity.RoomSnapshot, opts Options) *Room {
	restored := New(snapshot.RoomCode, opts)

	restored.version = snapshot.Version
	restored.board = snapshot.Board
	restored.currentPlayer = snapshot.CurrentPlayer
	restored.gameActive = snapshot.GameActive
	restored.scores = snapshot.Scores
	restored.piecesPlaced = snapshot.PiecesPlaced
	restored.gamePhase = snapshot.GamePhase
	restored.pieceColors = snapshot.PieceColors
	restored.createdAt = snapshot.CreatedAt
	restored.lastActivity = snapshot.LastActivity
	restored.completedAt = snapshot.CompletedAt

	if snapshot.MaxPieces > 0 {
		restored.maxPieces = snapshot.MaxPieces
	}

	for i := range snapshot.Players {
		seat := snapshot.Players[i]
		seat.SocketRef = ""
		restored.players = append(restored.players, &seat)
	}

	return restored
}

func (that *Room) Code() string {
	return that.code
}

// Join seats an identity in the room. A returning userId rebinds to its
// existing seat instead of taking a new one, which is what makes
// disconnect/resume work.
func (that *Room) Join(userID, username, socketRef string) (entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return entity.Player{}, apperror.ErrRoomNotFound
	}

	now := time.Now()

	for _, seat := range that.players {
		if userID != "" && seat.UserID == userID {
			seat.SocketRef = socketRef
			seat.LastSeen = now
			that.touch()

			return *seat, nil
		}
	}

	if len(that.players) >= maxPlayers {
		return entity.Player{}, apperror.ErrRoomFull
	}

	if !usernamePattern.MatchString(username) {
		return entity.Player{}, apperror.ErrInvalidUsername
	}

	for _, seat := range that.players {
		if strings.EqualFold(seat.Username, username) {
			return entity.Player{}, apperror.ErrUsernameTaken
		}
	}

	symbol := entity.SymbolX
	if len(that.players) == 1 {
		symbol = entity.SymbolO
	}

	player := &entity.Player{
		UserID:    userID,
		Username:  username,
		Symbol:    symbol,
		SocketRef: socketRef,
		LastSeen:  now,
	}

	that.players = append(that.players, player)
	that.touch()

	return *player, nil
}

// ApplyMove validates and applies one move for actingSymbol. In placement
// phase fromCell is ignored; in movement phase it selects the piece to move.
func (that *Room) ApplyMove(actingSymbol string, cellIndex int, fromCell *int) (*MoveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return nil, apperror.ErrRoomNotFound
	}

	if !that.gameActive {
		return nil, apperror.ErrGameNotActive
	}

	if len(that.players) < maxPlayers {
		return nil, apperror.ErrWaitingForPeer
	}

	if actingSymbol != that.currentPlayer {
		return nil, apperror.ErrNotYourTurn
	}

	switch that.gamePhase {
	case entity.PhasePlacement:
		if err := that.placePiece(actingSymbol, cellIndex); err != nil {
			return nil, err
		}
	case entity.PhaseMovement:
		if err := that.movePiece(actingSymbol, cellIndex, fromCell); err != nil {
			return nil, err
		}
	}

	that.touch()

	result := &MoveResult{}

	if win := tictactoe.CheckWin(that.board); win != nil {
		that.finishGame()
		that.incrementScore(win.Winner)

		result.Win = win
		if winner := that.playerBySymbol(win.Winner); winner != nil {
			result.WinnerName = winner.Username
		}
	} else if that.gamePhase == entity.PhasePlacement && tictactoe.CheckDraw(that.board) {
		// a draw can only fill the board while pieces are still being added
		that.finishGame()
		that.scores.Draw++

		result.Draw = true
	} else {
		that.toggleTurn()
	}

	result.Snapshot = that.snapshotLocked()

	return result, nil
}

func (that *Room) placePiece(symbol string, cellIndex int) error {
	if !tictactoe.IsValidCell(cellIndex) {
		return apperror.ErrIllegalMove
	}

	if that.board[cellIndex] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	if that.placedBySymbol(symbol) >= that.maxPieces {
		return apperror.ErrAllPiecesPlaced
	}

	that.board[cellIndex] = symbol

	if symbol == entity.SymbolX {
		that.piecesPlaced.X++
	} else {
		that.piecesPlaced.O++
	}

	that.gamePhase = tictactoe.AdvancePhase(that.piecesPlaced, that.maxPieces)

	return nil
}

func (that *Room) movePiece(symbol string, cellIndex int, fromCell *int) error {
	if fromCell == nil {
		return apperror.ErrPieceRequired
	}

	if !tictactoe.IsLegalMove(that.board, symbol, *fromCell, cellIndex, that.movementRule) {
		return apperror.ErrIllegalMove
	}

	that.board[*fromCell] = entity.EmptyCell
	that.board[cellIndex] = symbol

	return nil
}

// ResetGame clears the board back to a fresh placement phase. Scores and
// piece colors carry over.
func (that *Room) ResetGame() (entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return entity.RoomSnapshot{}, apperror.ErrRoomNotFound
	}

	that.board = [9]string{}
	that.currentPlayer = entity.SymbolX
	that.gameActive = true
	that.piecesPlaced = entity.PiecesPlaced{}
	that.gamePhase = entity.PhasePlacement
	that.completedAt = nil
	that.touch()

	return that.snapshotLocked(), nil
}

func (that *Room) ResetScore() (entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return entity.RoomSnapshot{}, apperror.ErrRoomNotFound
	}

	that.scores = entity.Scores{}
	that.touch()

	return that.snapshotLocked(), nil
}

// ChangeColor sets the color of a symbol's pieces. Only the player owning
// the symbol may change it.
func (that *Room) ChangeColor(actingSymbol, symbol, hexColor string) (entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return entity.RoomSnapshot{}, apperror.ErrRoomNotFound
	}

	if actingSymbol != symbol {
		return entity.RoomSnapshot{}, apperror.ErrNotYourPiece
	}

	if !colorPattern.MatchString(hexColor) {
		return entity.RoomSnapshot{}, apperror.ErrInvalidColor
	}

	if symbol == entity.SymbolX {
		that.pieceColors.X = hexColor
	} else {
		that.pieceColors.O = hexColor
	}

	that.touch()

	return that.snapshotLocked(), nil
}

// ChangeUsername renames the seat bound to userID, subject to the same
// validation and in-room uniqueness rules as Join.
func (that *Room) ChangeUsername(userID, newUsername string) (entity.RoomSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return entity.RoomSnapshot{}, apperror.ErrRoomNotFound
	}

	if !usernamePattern.MatchString(newUsername) {
		return entity.RoomSnapshot{}, apperror.ErrInvalidUsername
	}

	var seat *entity.Player
	for _, candidate := range that.players {
		if candidate.UserID == userID {
			seat = candidate
			continue
		}

		if strings.EqualFold(candidate.Username, newUsername) {
			return entity.RoomSnapshot{}, apperror.ErrUsernameTaken
		}
	}

	if seat == nil {
		return entity.RoomSnapshot{}, apperror.ErrNotSeated
	}

	seat.Username = newUsername
	that.touch()

	return that.snapshotLocked(), nil
}

// MarkDisconnected clears the connection handle of the seat bound to
// socketRef. The seat itself stays so the player can resume later.
func (that *Room) MarkDisconnected(socketRef string) (string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.deleted {
		return "", false
	}

	for _, seat := range that.players {
		if seat.SocketRef == socketRef {
			seat.SocketRef = ""
			seat.LastSeen = time.Now()
			that.touch()

			return seat.Username, true
		}
	}

	return "", false
}

// MarkDeleted retires the room for good: every later mutation is rejected
// with a room-not-found error, so a stale handle can neither play on nor
// re-persist a destroyed game.
func (that *Room) MarkDeleted() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.deleted = true
	that.gameActive = false
}

func (that *Room) IsDeleted() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.deleted
}

func (that *Room) ConnectedPlayers() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	connected := 0
	for _, seat := range that.players {
		if seat.IsConnected() {
			connected++
		}
	}

	return connected
}

func (that *Room) LastActivity() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.lastActivity
}

// Snapshot returns a consistent copy of the room state.
func (that *Room) Snapshot() entity.RoomSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

func (that *Room) snapshotLocked() entity.RoomSnapshot {
	players := make([]entity.Player, 0, len(that.players))
	for _, seat := range that.players {
		players = append(players, *seat)
	}

	return entity.RoomSnapshot{
		RoomCode:      that.code,
		Version:       that.version,
		Players:       players,
		Board:         that.board,
		CurrentPlayer: that.currentPlayer,
		GameActive:    that.gameActive,
		Scores:        that.scores,
		PiecesPlaced:  that.piecesPlaced,
		GamePhase:     that.gamePhase,
		MaxPieces:     that.maxPieces,
		PieceColors:   that.pieceColors,
		CreatedAt:     that.createdAt,
		LastActivity:  that.lastActivity,
		CompletedAt:   that.completedAt,
	}
}

// touch commits a mutation: bumps the snapshot version and refreshes the
// activity timestamp. Callers hold the room lock.
func (that *Room) touch() {
	that.version++
	that.lastActivity = time.Now()
}

func (that *Room) finishGame() {
	that.gameActive = false

	completed := time.Now()
	that.completedAt = &completed
}

func (that *Room) incrementScore(symbol string) {
	if symbol == entity.SymbolX {
		that.scores.X++
	} else {
		that.scores.O++
	}
}

func (that *Room) toggleTurn() {
	if that.currentPlayer == entity.SymbolX {
		that.currentPlayer = entity.SymbolO
	} else {
		that.currentPlayer = entity.SymbolX
	}
}

func (that *Room) placedBySymbol(symbol string) int {
	if symbol == entity.SymbolX {
		return that.piecesPlaced.X
	}

	return that.piecesPlaced.O
}

func (that *Room) playerBySymbol(symbol string) *entity.Player {
	for _, seat := range that.players {
		if seat.Symbol == symbol {
			return seat
		}
	}

	return nil
}
