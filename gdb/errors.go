package gdb

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionClosed is returned by every operation attempted after the
	// session was torn down. Callers must treat it as fatal.
	ErrSessionClosed = errors.New("gdb session closed")

	// ErrNoCandidate reports that a scan completed without a single
	// validated candidate. It is a normal outcome: the caller retries with
	// another pattern or reports "not located" upward.
	ErrNoCandidate = errors.New("no validated board candidate")
)

// LaunchError means the debugger subprocess could not start.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError means no prompt sentinel arrived within the bounded wait.
type TimeoutError struct {
	Command string
	Wait    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no prompt within %v after %q", e.Wait, e.Command)
}

// ParseError means the debugger's response did not contain the expected
// number of value tokens. Unparseable tokens are dropped, never replaced
// with zero.
type ParseError struct {
	Command string
	Want    int
	Got     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsed %d of %d values from %q output", e.Got, e.Want, e.Command)
}
