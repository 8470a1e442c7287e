package bot

import (
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
)

// exactSearchLimit is the largest grid size searched exhaustively.
const exactSearchLimit = 4

// Selector implements session.MoveSelector.
type Selector struct{}

// SelectMove calls the package-level function to satisfy the interface.
func (Selector) SelectMove(board *game.Board, mark game.Mark) (game.Move, bool) {
	return SelectMove(board, mark)
}

// SelectMove picks the computer's move for mark. It returns false only when the board is full.
// The caller's board is never modified.
func SelectMove(board *game.Board, mark game.Mark) (game.Move, bool) {
	if board.IsFull() || !mark.IsPlayer() {
		return game.Move{}, false
	}

	work := board.Clone()
	if work.Size() <= exactSearchLimit {
		return newSearch(work, mark).bestMove(), true
	}
	return heuristicMove(work, mark), true
}

// heuristicMove will win if it can, block if it must, then prefer the center, the corners
// and finally the first free cell.
func heuristicMove(board *game.Board, mark game.Mark) game.Move {
	// 1. Win
	if move, ok := findWinningMove(board, mark); ok {
		return move
	}

	// 2. Block
	if move, ok := findWinningMove(board, mark.Opponent()); ok {
		return move
	}

	// 3. Center
	n := board.Size()
	if board.At(n/2, n/2) == game.Empty {
		return game.Move{Row: n / 2, Col: n / 2}
	}

	// 4. Corners: top-left, top-right, bottom-left, bottom-right
	corners := []game.Move{{Row: 0, Col: 0}, {Row: 0, Col: n - 1}, {Row: n - 1, Col: 0}, {Row: n - 1, Col: n - 1}}
	for _, corner := range corners {
		if board.At(corner.Row, corner.Col) == game.Empty {
			return corner
		}
	}

	// 5. First free cell
	return board.EmptyCells()[0]
}

// findWinningMove tries mark on every empty cell and reports the last one, in row-major
// order, that completes a line. Trial placements are reverted.
func findWinningMove(board *game.Board, mark game.Mark) (move game.Move, found bool) {
	for _, cell := range board.EmptyCells() {
		_ = board.Place(cell.Row, cell.Col, mark)
		if game.HasWon(board, mark) {
			move, found = cell, true
		}
		board.Clear(cell.Row, cell.Col)
	}
	return move, found
}
