package tictactoe

import (
	"testing"

	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardWith(cells map[int]string) [9]string {
	var board [9]string
	for cell, symbol := range cells {
		board[cell] = symbol
	}
	return board
}

func TestCheckWin(t *testing.T) {
	t.Run("Reports every win pattern with the matching triple", func(t *testing.T) {
		for _, pattern := range WinPatterns {
			// Given: a board where X holds one full pattern
			board := boardWith(map[int]string{
				pattern[0]: entity.SymbolX,
				pattern[1]: entity.SymbolX,
				pattern[2]: entity.SymbolX,
			})

			// When: checking for a win
			result := CheckWin(board)

			// Then: X wins with exactly that pattern
			require.NotNil(t, result)
			assert.Equal(t, entity.SymbolX, result.Winner)
			assert.Equal(t, pattern, result.Pattern)
		}
	})

	t.Run("Returns nil when no pattern is complete", func(t *testing.T) {
		board := boardWith(map[int]string{0: entity.SymbolX, 1: entity.SymbolO, 4: entity.SymbolX})

		assert.Nil(t, CheckWin(board))
	})

	t.Run("Empty cells never form a win", func(t *testing.T) {
		var board [9]string

		assert.Nil(t, CheckWin(board))
	})
}

func TestCheckDraw(t *testing.T) {
	t.Run("Full board is a draw", func(t *testing.T) {
		board := [9]string{
			entity.SymbolX, entity.SymbolO, entity.SymbolX,
			entity.SymbolO, entity.SymbolX, entity.SymbolO,
			entity.SymbolO, entity.SymbolX, entity.SymbolO,
		}

		assert.True(t, CheckDraw(board))
	})

	t.Run("Board with an empty cell is not a draw", func(t *testing.T) {
		board := [9]string{
			entity.SymbolX, entity.SymbolO, entity.SymbolX,
			entity.SymbolO, entity.EmptyCell, entity.SymbolO,
			entity.SymbolO, entity.SymbolX, entity.SymbolO,
		}

		assert.False(t, CheckDraw(board))
	})
}

func TestIsLegalPlacement(t *testing.T) {
	tests := []struct {
		name      string
		board     [9]string
		placed    int
		target    int
		maxPieces int
		want      bool
	}{
		{"empty cell with pieces left", boardWith(nil), 0, 4, 3, true},
		{"occupied cell", boardWith(map[int]string{4: entity.SymbolO}), 0, 4, 3, false},
		{"all pieces already placed", boardWith(nil), 3, 4, 3, false},
		{"cell out of range", boardWith(nil), 0, 9, 3, false},
		{"negative cell", boardWith(nil), 0, -1, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLegalPlacement(tt.board, tt.placed, tt.target, tt.maxPieces))
		})
	}
}

func TestIsLegalMove(t *testing.T) {
	board := boardWith(map[int]string{0: entity.SymbolX, 4: entity.SymbolO})

	tests := []struct {
		name string
		from int
		to   int
		rule string
		want bool
	}{
		{"own piece to empty cell", 0, 1, MovementAny, true},
		{"own piece to far empty cell", 0, 8, MovementAny, true},
		{"from empty cell", 2, 1, MovementAny, false},
		{"from opponent piece", 4, 1, MovementAny, false},
		{"to occupied cell", 0, 4, MovementAny, false},
		{"adjacent rule allows neighbour", 0, 1, MovementAdjacent, true},
		{"adjacent rule allows diagonal neighbour", 0, 4, MovementAdjacent, false}, // occupied
		{"adjacent rule blocks far cell", 0, 8, MovementAdjacent, false},
		{"from out of range", -1, 1, MovementAny, false},
		{"to out of range", 0, 9, MovementAny, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLegalMove(board, entity.SymbolX, tt.from, tt.to, tt.rule))
		})
	}
}

func TestAdjacentCells(t *testing.T) {
	t.Run("Center touches every other cell", func(t *testing.T) {
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, AdjacentCells(4))
	})

	t.Run("Corner touches three cells", func(t *testing.T) {
		assert.ElementsMatch(t, []int{1, 3, 4}, AdjacentCells(0))
	})

	t.Run("Edge touches five cells", func(t *testing.T) {
		assert.ElementsMatch(t, []int{0, 2, 3, 4, 5}, AdjacentCells(1))
	})
}

func TestAdvancePhase(t *testing.T) {
	tests := []struct {
		name   string
		placed entity.PiecesPlaced
		want   string
	}{
		{"no pieces placed", entity.PiecesPlaced{}, entity.PhasePlacement},
		{"only X done", entity.PiecesPlaced{X: 3}, entity.PhasePlacement},
		{"only O done", entity.PiecesPlaced{O: 3}, entity.PhasePlacement},
		{"both one short", entity.PiecesPlaced{X: 2, O: 2}, entity.PhasePlacement},
		{"both done", entity.PiecesPlaced{X: 3, O: 3}, entity.PhaseMovement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdvancePhase(tt.placed, 3))
		})
	}
}
