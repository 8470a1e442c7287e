package game

// Verdict is the result of evaluating a board for one mark.
type Verdict int

const (
	NoWin Verdict = iota
	Win
)

// Evaluate reports whether mark fills a whole row, column or diagonal.
// It answers only for the given mark and makes no assumption about the other one.
func Evaluate(b *Board, mark Mark) Verdict {
	if !mark.IsPlayer() {
		return NoWin
	}

	n := b.size
	// Rows and columns
	for i := 0; i < n; i++ {
		if b.lineIs(mark, i*n, 1) || b.lineIs(mark, i, n) {
			return Win
		}
	}

	// Diagonals
	if b.lineIs(mark, 0, n+1) || b.lineIs(mark, n-1, n-1) {
		return Win
	}

	return NoWin
}

// HasWon is Evaluate as a predicate.
func HasWon(b *Board, mark Mark) bool {
	return Evaluate(b, mark) == Win
}

// IsDraw reports a full board on which neither mark has won.
func IsDraw(b *Board) bool {
	return b.IsFull() && !HasWon(b, MarkA) && !HasWon(b, MarkB)
}

// Winner returns the mark holding a winning line, or Empty.
func Winner(b *Board) Mark {
	switch {
	case HasWon(b, MarkA):
		return MarkA
	case HasWon(b, MarkB):
		return MarkB
	default:
		return Empty
	}
}

// lineIs walks n cells from start with the given stride.
func (b *Board) lineIs(mark Mark, start, stride int) bool {
	for i, idx := 0, start; i < b.size; i, idx = i+1, idx+stride {
		if b.cells[idx] != mark {
			return false
		}
	}
	return true
}
