package apperror

import "errors"

var (
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrGameNotActive   = errors.New("game is not active")
	ErrWaitingForPeer  = errors.New("waiting for another player")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomNotFound    = errors.New("room not found")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrInvalidUsername = errors.New("username must be 2-20 characters of letters, digits, spaces, '_' or '-'")
	ErrInvalidColor    = errors.New("color must be a hex value like #RRGGBB")
	ErrNotYourPiece    = errors.New("you can only change the color of your own piece")
	ErrAllPiecesPlaced = errors.New("all pieces are already placed")
	ErrPieceRequired   = errors.New("a piece must be selected to move")
	ErrIllegalMove     = errors.New("illegal move")
	ErrNotSeated       = errors.New("player is not seated in this room")
	ErrNotFound        = errors.New("not found")
)
