package gdb

import "fmt"

// Action is a move the decision policy hands back to the loop. The zero
// value means no legal move remains.
type Action int

const (
	ActionNone Action = iota
	ActionUp
	ActionDown
	ActionLeft
	ActionRight
)

// Key is the curses key code the paused input routine is forced to return.
// ActionNone maps to the quit key.
func (a Action) Key() byte {
	switch a {
	case ActionUp:
		return 'w'
	case ActionDown:
		return 's'
	case ActionLeft:
		return 'a'
	case ActionRight:
		return 'd'
	default:
		return 'q'
	}
}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	default:
		return "none"
	}
}

// ParseAction maps a direction word to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "up", "w":
		return ActionUp, nil
	case "down", "s":
		return ActionDown, nil
	case "left", "a":
		return ActionLeft, nil
	case "right", "d":
		return ActionRight, nil
	case "none", "q":
		return ActionNone, nil
	}
	return ActionNone, fmt.Errorf("unknown direction %q", s)
}

// Policy picks the next move for a snapshot. Implementations live outside
// the core; the loop only ever hands them an immutable Snapshot.
type Policy interface {
	ChooseAction(Snapshot) Action
}
