package gdb

import "errors"

const (
	// BoardCells is the number of 32-bit words in the game grid.
	BoardCells = 16
	// BoardSide is the row/column length of the grid.
	BoardSide = 4
	// MaxCell is the largest value a cell can plausibly hold.
	MaxCell = 65536
)

// ValidBoard reports whether a 16-word window plausibly holds the game grid:
// every cell is zero or an exact power of two no larger than MaxCell, with
// at least one empty and at least one occupied cell. All-empty and
// all-occupied windows are rejected; zero-filled and saturated regions
// elsewhere in the target produce exactly those shapes.
func ValidBoard(values []uint32) bool {
	if len(values) != BoardCells {
		return false
	}
	zeros := 0
	for _, v := range values {
		if v == 0 {
			zeros++
			continue
		}
		if v > MaxCell || v&(v-1) != 0 {
			return false
		}
	}
	return zeros > 0 && zeros < BoardCells
}

// BoardHandle pins the confirmed board location. The address is immutable
// once validation succeeds; only the cell contents change as the target
// runs. The handle is valid only while the owning session is alive.
type BoardHandle struct {
	Base  uint64
	Count int
	Width int
}

func NewBoardHandle(base uint64) BoardHandle {
	return BoardHandle{Base: base, Count: BoardCells, Width: wordWidth}
}

// Snapshot is an immutable point-in-time copy of the board with its derived
// fields.
type Snapshot struct {
	Values [BoardCells]uint32
	Empty  int
	Max    uint32
}

func NewSnapshot(values []uint32) Snapshot {
	var s Snapshot
	copy(s.Values[:], values)
	for _, v := range s.Values {
		if v == 0 {
			s.Empty++
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// Rows lays the snapshot out row-major, matching the target's 4x4 grid.
func (s Snapshot) Rows() [BoardSide][BoardSide]uint32 {
	var rows [BoardSide][BoardSide]uint32
	for i, v := range s.Values {
		rows[i/BoardSide][i%BoardSide] = v
	}
	return rows
}

// ReadBoard produces a Snapshot through the same parsing path as ReadWindow.
// One ParseError is retried: a read can race the target mid-update, and a
// second clean read settles it either way.
func (sc *Scanner) ReadBoard(h BoardHandle) (Snapshot, error) {
	w, err := sc.ReadWindow(h.Base, h.Count)
	var perr *ParseError
	if errors.As(err, &perr) {
		w, err = sc.ReadWindow(h.Base, h.Count)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(w.Values), nil
}
