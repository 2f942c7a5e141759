// Package mondrian packs integer squares into a fixed-width grid that grows
// downward without bound.
//
// Every row keeps a sorted ledger of free slots. A slot at (x, y) with
// capacity R can take any square of side up to R with its top-left corner
// at (x, y). Placement is first-fit: rows are scanned from the top, slots
// from the left, and the first slot with R >= size is filled at its own
// position. When nothing fits, a new row seeded with one full-width slot is
// appended below.
//
// Filling a slot updates the ledger of every row the square spans (new rows
// are created on demand) and shortens slots in the rows above whose
// capacity reached into the square, handing the leftover space beside it
// back as smaller square slots.
//
// Invariants after every [Layout.Place]:
//   - every row's slots are sorted by X
//   - placed squares never overlap
//   - [Layout.Size] is the true bounding box of the placed squares
package mondrian

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

var (
	// ErrInvalidSize is returned for squares smaller than 1 and for grids
	// narrower than 1.
	ErrInvalidSize = errors.New("mondrian: size must be at least 1")

	// ErrTooLarge is returned when a square is wider than the grid.
	ErrTooLarge = errors.New("mondrian: square wider than grid")
)

// Position is a grid cell; Y grows downward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Slot is a free square of capacity R anchored at Position.
type Slot struct {
	Position
	R int `json:"r"`
}

// Square is a placed parcel of side R with its top-left corner at Position.
type Square struct {
	Position
	R int `json:"r"`
}

// Overlaps reports whether two squares share a cell.
func (s Square) Overlaps(o Square) bool {
	return s.X < o.X+o.R && o.X < s.X+s.R &&
		s.Y < o.Y+o.R && o.Y < s.Y+s.R
}

// Size is the bounding box of all placed squares.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// row is the slot ledger of one grid row. Slots are shared between slots
// and byX so capacities can be adjusted in place.
type row struct {
	y     int
	slots []*Slot
	byX   map[int]*Slot
}

// Layout is a single packing run. It is not safe for concurrent use.
type Layout struct {
	width     int
	height    int // nominal; rows may exceed it
	rowOffset int // Y of rows[0]
	rows      []*row
	squares   []Square
	occupied  *roaring.Bitmap
	xMax      int
	yMax      int
}

// New creates an empty layout. height is the nominal grid height; rows are
// added on demand past it.
func New(width, height int) (*Layout, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidSize, width)
	}
	return &Layout{
		width:    width,
		height:   max(height, 0),
		rows:     make([]*row, 0, max(height, 1)),
		occupied: roaring.New(),
	}, nil
}

// Pack places every size in order into a new layout of the given width.
func Pack(width int, sizes []int) (*Layout, error) {
	l, err := New(width, width)
	if err != nil {
		return nil, err
	}
	for i, s := range sizes {
		if _, err := l.Place(s); err != nil {
			return nil, fmt.Errorf("parcel %d: %w", i, err)
		}
	}
	return l, nil
}

// Place fills the first slot with capacity for a size×size square and
// returns the placed square.
func (l *Layout) Place(size int) (Square, error) {
	if size < 1 {
		return Square{}, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if size > l.width {
		return Square{}, fmt.Errorf("%w: size %d, width %d", ErrTooLarge, size, l.width)
	}

	var sq Square
	found := false
scan:
	for _, rw := range l.rows {
		for _, slot := range rw.slots {
			if slot.R >= size {
				sq = l.fill(slot, size)
				found = true
				break scan
			}
		}
	}
	if !found {
		rw := l.addRow()
		slot := l.addSlot(Slot{Position: Position{X: 0, Y: rw.y}, R: l.width})
		sq = l.fill(slot, size)
	}

	l.squares = append(l.squares, sq)
	for dy := 0; dy < size; dy++ {
		base := uint64(sq.Y+dy) * uint64(l.width)
		l.occupied.AddRange(base+uint64(sq.X), base+uint64(sq.X+size))
	}
	l.xMax = max(l.xMax, sq.X+size)
	l.yMax = max(l.yMax, sq.Y+size)
	return sq, nil
}

// fill places a size×size square at slot's position and updates the
// ledgers of the rows it spans and the rows above it.
func (l *Layout) fill(slot *Slot, size int) Square {
	left, right := slot.X, slot.X+size
	top, bottom := slot.Y, slot.Y+size

	l.removeSlot(slot)

	for y := top; y < bottom; y++ {
		rw := l.row(y)
		if rw == nil {
			l.addRow()
			if left > 0 {
				l.addSlot(Slot{Position: Position{X: 0, Y: y}, R: left})
			}
			if right < l.width {
				l.addSlot(Slot{Position: Position{X: right, Y: y}, R: l.width - right})
			}
			continue
		}

		var hits []*Slot
		excess := 0
		for _, s := range rw.slots {
			if s.X+s.R < left || s.X >= right {
				continue
			}
			hits = append(hits, s)
			excess = max(excess, s.X+s.R-(slot.X+slot.R))
		}
		if _, taken := rw.byX[right]; right < l.width && !taken {
			l.addSlot(Slot{Position: Position{X: right, Y: y}, R: slot.R - size + excess})
		}
		for _, s := range hits {
			s.R = left - s.X
			if s.R == 0 {
				l.removeSlot(s)
			}
		}
	}

	for y := max(0, top-size); y < top; y++ {
		rw := l.row(y)
		if rw == nil {
			continue
		}
		// addSlot may grow rw.slots while we scan it.
		for i := 0; i < len(rw.slots); i++ {
			s := rw.slots[i]
			if s.X >= right || s.X+s.R <= left || s.Y+s.R < top {
				continue
			}
			old := s.R
			s.R = top - s.Y
			l.splitRemainder(s.X+s.R, s.Y, old-s.R, s.R)
		}
	}

	return Square{Position: slot.Position, R: size}
}

// splitRemainder hands a w×h free region back as square slots, taking the
// smaller side each step.
func (l *Layout) splitRemainder(x, y, w, h int) {
	for w > 0 && h > 0 {
		if w <= h {
			l.addSlot(Slot{Position: Position{X: x, Y: y}, R: w})
			y += w
			h -= w
		} else {
			l.addSlot(Slot{Position: Position{X: x, Y: y}, R: h})
			x += h
			w -= h
		}
	}
}

func (l *Layout) row(y int) *row {
	i := y - l.rowOffset
	if i < 0 || i >= len(l.rows) {
		return nil
	}
	return l.rows[i]
}

func (l *Layout) addRow() *row {
	rw := &row{y: len(l.rows) + l.rowOffset, byX: make(map[int]*Slot)}
	l.rows = append(l.rows, rw)
	return rw
}

// addSlot records s in its row's ledger. A slot already anchored at the same
// position keeps the larger capacity. It returns nil for empty slots and
// rows that do not exist.
func (l *Layout) addSlot(s Slot) *Slot {
	if s.R <= 0 {
		return nil
	}
	rw := l.row(s.Y)
	if rw == nil {
		return nil
	}
	if existing, ok := rw.byX[s.X]; ok {
		existing.R = max(existing.R, s.R)
		return existing
	}
	slot := &s
	at, _ := slices.BinarySearchFunc(rw.slots, s.X, func(e *Slot, x int) int { return e.X - x })
	rw.slots = slices.Insert(rw.slots, at, slot)
	rw.byX[s.X] = slot
	return slot
}

func (l *Layout) removeSlot(s *Slot) {
	rw := l.row(s.Y)
	if rw == nil {
		return
	}
	delete(rw.byX, s.X)
	if i := slices.IndexFunc(rw.slots, func(e *Slot) bool { return e.X == s.X }); i >= 0 {
		rw.slots = slices.Delete(rw.slots, i, i+1)
	}
}

// Size returns the bounding box of the placed squares.
func (l *Layout) Size() Size {
	return Size{Width: l.xMax, Height: l.yMax}
}

// Width returns the fixed grid width.
func (l *Layout) Width() int { return l.width }

// Height returns the nominal grid height given to [New].
func (l *Layout) Height() int { return l.height }

// Rows returns the number of rows allocated so far.
func (l *Layout) Rows() int { return len(l.rows) }

// Slots returns a copy of the usable slots of row y, or nil if the row has
// not been allocated.
func (l *Layout) Slots(y int) []Slot {
	rw := l.row(y)
	if rw == nil {
		return nil
	}
	out := make([]Slot, 0, len(rw.slots))
	for _, s := range rw.slots {
		if s.R > 0 {
			out = append(out, *s)
		}
	}
	return out
}

// Squares returns the placed squares in placement order.
func (l *Layout) Squares() []Square {
	return append([]Square(nil), l.squares...)
}

// Occupied reports whether cell (x, y) is covered by a placed square.
func (l *Layout) Occupied(x, y int) bool {
	if x < 0 || x >= l.width || y < 0 {
		return false
	}
	return l.occupied.Contains(uint32(y*l.width + x))
}

// OccupiedCells returns the number of covered cells.
func (l *Layout) OccupiedCells() uint64 {
	return l.occupied.GetCardinality()
}
