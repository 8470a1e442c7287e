package bot

import (
	"math"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
)

const (
	winScore   = 10
	lossScore  = -10
	drawScore  = 0
	worstScore = -1000
)

// maximizingBit marks table keys of positions where the searching mark is to move.
const maximizingBit = uint64(1) << 63

type bound uint8

const (
	exact bound = iota
	lowerBound
	upperBound
)

type entry struct {
	score int8
	bound bound
}

// search is a minimax search with alpha-beta pruning and a transposition table.
// Scores carry no depth discount, so a position's value depends only on the cells
// and the side to move, which is what the table is keyed by.
type search struct {
	board    *game.Board
	mark     game.Mark
	opponent game.Mark
	key      uint64
	table    map[uint64]entry
}

func newSearch(board *game.Board, mark game.Mark) *search {
	s := &search{
		board:    board,
		mark:     mark,
		opponent: mark.Opponent(),
		table:    make(map[uint64]entry),
	}
	n := board.Size()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			s.key |= cellCode(board.At(r, c)) << s.shift(r, c)
		}
	}
	return s
}

func cellCode(m game.Mark) uint64 {
	switch m {
	case game.MarkA:
		return 1
	case game.MarkB:
		return 2
	default:
		return 0
	}
}

func (s *search) shift(row, col int) uint {
	return uint(2 * (row*s.board.Size() + col))
}

func (s *search) place(row, col int, mark game.Mark) {
	_ = s.board.Place(row, col, mark)
	s.key |= cellCode(mark) << s.shift(row, col)
}

func (s *search) undo(row, col int) {
	s.key &^= cellCode(s.board.At(row, col)) << s.shift(row, col)
	s.board.Clear(row, col)
}

// bestMove scans empty cells in row-major order and keeps the first move with the
// highest score. Passing the current best as alpha only prunes children that could
// not replace it.
func (s *search) bestMove() game.Move {
	bestScore := worstScore
	var best game.Move
	for _, move := range s.board.EmptyCells() {
		s.place(move.Row, move.Col, s.mark)
		score := s.minimax(false, bestScore, math.MaxInt)
		s.undo(move.Row, move.Col)

		if score > bestScore {
			bestScore = score
			best = move
		}
	}
	return best
}

func (s *search) score() (int, bool) {
	switch {
	case game.HasWon(s.board, s.mark):
		return winScore, true
	case game.HasWon(s.board, s.opponent):
		return lossScore, true
	case s.board.IsFull():
		return drawScore, true
	}
	return 0, false
}

func (s *search) minimax(maximizing bool, alpha, beta int) int {
	if score, terminal := s.score(); terminal {
		return score
	}

	key := s.key
	if maximizing {
		key |= maximizingBit
	}
	if e, ok := s.table[key]; ok {
		v := int(e.score)
		switch e.bound {
		case exact:
			return v
		case lowerBound:
			alpha = max(alpha, v)
		case upperBound:
			beta = min(beta, v)
		}
		if alpha >= beta {
			return v
		}
	}
	origAlpha, origBeta := alpha, beta

	n := s.board.Size()
	var best int
	if maximizing {
		best = worstScore
	} else {
		best = -worstScore
	}

search:
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if s.board.At(r, c) != game.Empty {
				continue
			}
			if maximizing {
				s.place(r, c, s.mark)
				best = max(best, s.minimax(false, alpha, beta))
				s.undo(r, c)
				alpha = max(alpha, best)
			} else {
				s.place(r, c, s.opponent)
				best = min(best, s.minimax(true, alpha, beta))
				s.undo(r, c)
				beta = min(beta, best)
			}
			if alpha >= beta {
				break search
			}
		}
	}

	e := entry{score: int8(best), bound: exact}
	switch {
	case best <= origAlpha:
		e.bound = upperBound
	case best >= origBeta:
		e.bound = lowerBound
	}
	s.table[key] = e
	return best
}
