package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Mark is the symbol a player places on the board. Empty marks an unoccupied cell.
type Mark string

const (
	Empty Mark = ""
	MarkA Mark = "X"
	MarkB Mark = "O"
)

// Board size limits
const (
	MinSize = 3
	MaxSize = 10
)

var (
	ErrInvalidSize  = fmt.Errorf("grid size must be between %d and %d", MinSize, MaxSize)
	ErrInvalidMark  = errors.New("invalid mark")
	ErrInvalidMove  = errors.New("invalid move")
	ErrOutOfBounds  = fmt.Errorf("%w: position out of bounds", ErrInvalidMove)
	ErrCellOccupied = fmt.Errorf("%w: cell already occupied", ErrInvalidMove)
)

// Opponent returns the other player's mark. The opponent of Empty is Empty.
func (m Mark) Opponent() Mark {
	switch m {
	case MarkA:
		return MarkB
	case MarkB:
		return MarkA
	default:
		return Empty
	}
}

// IsPlayer reports whether m is one of the two player marks.
func (m Mark) IsPlayer() bool {
	return m == MarkA || m == MarkB
}

// MarshalJSON encodes Empty as null so boards and winners match the wire format.
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Mark) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch mark := Mark(s); mark {
	case Empty, MarkA, MarkB:
		*m = mark
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMark, s)
	}
}

// Move addresses one cell.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a square grid whose size is fixed at creation.
type Board struct {
	size  int
	cells []Mark
}

// NewBoard returns an empty size×size board.
func NewBoard(size int) (*Board, error) {
	if size < MinSize || size > MaxSize {
		return nil, ErrInvalidSize
	}
	return &Board{size: size, cells: make([]Mark, size*size)}, nil
}

// BoardFromCells builds a board from a row-major grid, typically one received over the wire.
func BoardFromCells(cells [][]Mark) (*Board, error) {
	b, err := NewBoard(len(cells))
	if err != nil {
		return nil, err
	}
	for r, row := range cells {
		if len(row) != b.size {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", r, len(row), b.size, ErrInvalidSize)
		}
		for c, mark := range row {
			if mark != Empty && !mark.IsPlayer() {
				return nil, fmt.Errorf("cell (%d,%d): %w", r, c, ErrInvalidMark)
			}
			b.cells[r*b.size+c] = mark
		}
	}
	return b, nil
}

func (b *Board) Size() int {
	return b.size
}

// InBounds reports whether (row, col) addresses a cell of the board.
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.size && col >= 0 && col < b.size
}

// At returns the mark at (row, col), or Empty when the position is out of bounds.
func (b *Board) At(row, col int) Mark {
	if !b.InBounds(row, col) {
		return Empty
	}
	return b.cells[row*b.size+col]
}

// Place puts mark on an empty cell.
func (b *Board) Place(row, col int, mark Mark) error {
	if !mark.IsPlayer() {
		return ErrInvalidMark
	}
	if !b.InBounds(row, col) {
		return ErrOutOfBounds
	}
	if b.cells[row*b.size+col] != Empty {
		return ErrCellOccupied
	}
	b.cells[row*b.size+col] = mark
	return nil
}

// Clear empties a cell. It is used to revert trial placements.
func (b *Board) Clear(row, col int) {
	if b.InBounds(row, col) {
		b.cells[row*b.size+col] = Empty
	}
}

func (b *Board) Clone() *Board {
	cells := make([]Mark, len(b.cells))
	copy(cells, b.cells)
	return &Board{size: b.size, cells: cells}
}

// Cells returns a row-major copy of the grid.
func (b *Board) Cells() [][]Mark {
	grid := make([][]Mark, b.size)
	for r := range grid {
		grid[r] = make([]Mark, b.size)
		copy(grid[r], b.cells[r*b.size:(r+1)*b.size])
	}
	return grid
}

func (b *Board) IsFull() bool {
	for _, m := range b.cells {
		if m == Empty {
			return false
		}
	}
	return true
}

// EmptyCells lists the unoccupied cells in row-major order.
func (b *Board) EmptyCells() []Move {
	moves := make([]Move, 0, len(b.cells))
	for i, m := range b.cells {
		if m == Empty {
			moves = append(moves, Move{Row: i / b.size, Col: i % b.size})
		}
	}
	return moves
}
