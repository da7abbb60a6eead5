// Package ai provides the decision policies the control loop injects with.
package ai

import "github.com/aygp-dr/gdb-game-ai/gdb"

// Basic tries directions in a fixed priority, down first, and picks the
// first one that would change the board. Keeping tiles low and to the
// right is a crude but serviceable 2048 strategy.
type Basic struct{}

var priority = []gdb.Action{gdb.ActionDown, gdb.ActionRight, gdb.ActionLeft, gdb.ActionUp}

func (Basic) ChooseAction(s gdb.Snapshot) gdb.Action {
	for _, a := range priority {
		if CanMove(s, a) {
			return a
		}
	}
	return gdb.ActionNone
}

// Constant always answers the same action, regardless of the board. With
// ActionDown it reproduces the naive autopilot.
type Constant struct {
	Action gdb.Action
}

func (c Constant) ChooseAction(gdb.Snapshot) gdb.Action { return c.Action }

// CanMove reports whether moving in the given direction changes the board,
// either by sliding a tile into a gap or by merging an equal pair.
func CanMove(s gdb.Snapshot, a gdb.Action) bool {
	rows := s.Rows()
	for i := 0; i < gdb.BoardSide; i++ {
		line := extractLine(rows, a, i)
		if slideLine(line) != line {
			return true
		}
	}
	return false
}

// extractLine reads row or column i oriented so the move direction is
// toward index 0.
func extractLine(rows [gdb.BoardSide][gdb.BoardSide]uint32, a gdb.Action, i int) [gdb.BoardSide]uint32 {
	var line [gdb.BoardSide]uint32
	for j := 0; j < gdb.BoardSide; j++ {
		switch a {
		case gdb.ActionLeft:
			line[j] = rows[i][j]
		case gdb.ActionRight:
			line[j] = rows[i][gdb.BoardSide-1-j]
		case gdb.ActionUp:
			line[j] = rows[j][i]
		case gdb.ActionDown:
			line[j] = rows[gdb.BoardSide-1-j][i]
		}
	}
	return line
}

// slideLine compresses toward index 0 and merges each equal pair once, the
// standard 2048 line move.
func slideLine(line [gdb.BoardSide]uint32) [gdb.BoardSide]uint32 {
	var out [gdb.BoardSide]uint32
	k := 0
	var prev uint32
	for _, v := range line {
		if v == 0 {
			continue
		}
		if v == prev {
			out[k-1] = v * 2
			prev = 0
			continue
		}
		out[k] = v
		prev = v
		k++
	}
	return out
}
