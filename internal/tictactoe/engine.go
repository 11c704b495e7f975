package tictactoe

import "github.com/playtrio/tictactoe-backend/internal/entity"

const (
	// MovementAny allows a piece to move to any empty cell.
	MovementAny = "any"
	// MovementAdjacent restricts moves to the 8 cells around the piece.
	MovementAdjacent = "adjacent"
)

// WinPatterns are the 8 winning triples: 3 rows, 3 columns, 2 diagonals.
var WinPatterns = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type WinResult struct {
	Winner  string `json:"winner"`
	Pattern [3]int `json:"pattern"`
}

// CheckWin scans the win patterns in order (rows, columns, diagonals) and
// returns the first triple whose three cells are equal and non-empty.
func CheckWin(board [9]string) *WinResult {
	for _, pattern := range WinPatterns {
		a, b, c := board[pattern[0]], board[pattern[1]], board[pattern[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return &WinResult{Winner: a, Pattern: pattern}
		}
	}

	return nil
}

// CheckDraw reports whether the board is completely full. Callers must check
// for a win first.
func CheckDraw(board [9]string) bool {
	for _, cell := range board {
		if cell == entity.EmptyCell {
			return false
		}
	}

	return true
}

func IsValidCell(cell int) bool {
	return cell >= 0 && cell < 9
}

// IsLegalPlacement reports whether symbol may place a new piece on the target
// cell: the cell is empty and the symbol still has pieces left to place.
func IsLegalPlacement(board [9]string, placed int, targetCell, maxPieces int) bool {
	if !IsValidCell(targetCell) {
		return false
	}

	return board[targetCell] == entity.EmptyCell && placed < maxPieces
}

// IsLegalMove reports whether symbol may relocate one of its pieces from
// fromCell to toCell under the given movement rule.
func IsLegalMove(board [9]string, symbol string, fromCell, toCell int, rule string) bool {
	if !IsValidCell(fromCell) || !IsValidCell(toCell) {
		return false
	}

	if board[fromCell] != symbol || board[toCell] != entity.EmptyCell {
		return false
	}

	if rule != MovementAdjacent {
		return true
	}

	for _, cell := range AdjacentCells(fromCell) {
		if cell == toCell {
			return true
		}
	}

	return false
}

// AdjacentCells returns the cells around index in all 8 directions.
func AdjacentCells(index int) []int {
	row, col := index/3, index%3

	var adjacent []int
	for r := -1; r <= 1; r++ {
		for c := -1; c <= 1; c++ {
			if r == 0 && c == 0 {
				continue
			}

			newRow, newCol := row+r, col+c
			if newRow >= 0 && newRow < 3 && newCol >= 0 && newCol < 3 {
				adjacent = append(adjacent, newRow*3+newCol)
			}
		}
	}

	return adjacent
}

// AdvancePhase returns the phase the game is in given how many pieces each
// side has placed. The transition to movement is monotonic: once both sides
// hit maxPieces the game never returns to placement short of a reset.
func AdvancePhase(placed entity.PiecesPlaced, maxPieces int) string {
	if placed.X >= maxPieces && placed.O >= maxPieces {
		return entity.PhaseMovement
	}

	return entity.PhasePlacement
}
