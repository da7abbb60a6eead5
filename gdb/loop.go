package gdb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LoopState tracks where the control loop is in its lifecycle.
type LoopState int

const (
	Unattached LoopState = iota
	Located
	Armed
	Paused
	Terminated
)

func (s LoopState) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Located:
		return "located"
	case Armed:
		return "armed"
	case Paused:
		return "paused"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Commander is what the loop needs from a Session.
type Commander interface {
	Requester
	RequestTimeout(command string, wait time.Duration) (string, error)
	Interrupt() error
	Sync() (string, error)
	Close() error
}

// Loop drives the read-decide-inject cycle. It owns the session exclusively
// for its lifetime and must be driven from a single goroutine.
type Loop struct {
	sess   Commander
	scan   *Scanner
	policy Policy
	log    *logger.Logger

	inputFn   string // routine the pause point hangs on
	searchLo  uint64
	searchHi  uint64
	patterns  []Pattern
	runWindow time.Duration // how long Launch lets the target run freely
	pauseWait time.Duration // bound on waiting for the next pause
	retries   int           // extra attempts after a protocol timeout

	state   LoopState
	bp      *Breakpoint
	handle  *BoardHandle
	pauses  int
	observe func(Snapshot, Action)
}

type LoopOption func(*Loop)

// WithInputFunction names the target routine the pause point is installed
// on, "wgetch" by default.
func WithInputFunction(name string) LoopOption {
	return func(l *Loop) { l.inputFn = name }
}

// WithSearchRange bounds the address range pattern searches cover.
func WithSearchRange(lo, hi uint64) LoopOption {
	return func(l *Loop) { l.searchLo, l.searchHi = lo, hi }
}

// WithPatterns replaces the default pattern library, keeping its order as
// the priority order.
func WithPatterns(ps []Pattern) LoopOption {
	return func(l *Loop) { l.patterns = ps }
}

// WithRunWindow bounds how long Launch lets the target run before stopping
// it for the first scan.
func WithRunWindow(d time.Duration) LoopOption {
	return func(l *Loop) { l.runWindow = d }
}

// WithPauseWait bounds how long the loop waits for the target to reach the
// pause point after a resume.
func WithPauseWait(d time.Duration) LoopOption {
	return func(l *Loop) { l.pauseWait = d }
}

// WithObserver registers a hook called once per serviced pause with the
// snapshot read and the action injected, in pause order.
func WithObserver(fn func(Snapshot, Action)) LoopOption {
	return func(l *Loop) { l.observe = fn }
}

func NewLoop(sess Commander, policy Policy, opts ...LoopOption) *Loop {
	l := &Loop{
		sess:      sess,
		policy:    policy,
		inputFn:   "wgetch",
		searchLo:  0x400000,
		searchHi:  0x700000,
		patterns:  DefaultPatterns,
		runWindow: 2 * time.Second,
		pauseWait: 30 * time.Second,
		retries:   2,
		state:     Unattached,
		log:       logger.NewLogger(coloransi.Foreground(coloransi.ColorLimeGreen, "control-loop")),
	}
	for _, opt := range opts {
		opt(l)
	}
	// Timeouts are retried through Sync before the command is reissued, so
	// the scanner inherits the retry policy without knowing about it.
	l.scan = NewScanner(retryRequester{l})
	return l
}

func (l *Loop) State() LoopState { return l.state }
func (l *Loop) Pauses() int      { return l.pauses }

// Board returns the confirmed handle, if any.
func (l *Loop) Board() (BoardHandle, bool) {
	if l.handle == nil {
		return BoardHandle{}, false
	}
	return *l.handle, true
}

// Launch starts the target and lets it run long enough to seed the board,
// then stops it so Locate can scan a quiet memory image. The run window is
// a bound on an expected timeout, not a sleep: an interactive target never
// prompts on its own, so the prompt arriving early means it exited.
func (l *Loop) Launch() error {
	if l.state != Unattached {
		return fmt.Errorf("launch: loop is %s", l.state)
	}

	out, err := l.sess.RequestTimeout("run", l.runWindow)
	var te *TimeoutError
	switch {
	case errors.As(err, &te):
		// target is running
	case err != nil:
		return l.observeFatal(err)
	default:
		l.state = Terminated
		return fmt.Errorf("target exited during launch: %s", strings.TrimSpace(out))
	}

	if err := l.sess.Interrupt(); err != nil {
		return l.observeFatal(err)
	}
	if _, err := l.sess.Sync(); err != nil {
		return l.observeFatal(err)
	}
	l.log.Infoln("target launched and stopped for scanning")
	return nil
}

// Locate runs the scan-then-validate cycle over the pattern library in
// priority order and pins the first window that validates. All patterns
// exhausted without a validated window is ErrNoCandidate, a normal outcome.
func (l *Loop) Locate() (BoardHandle, error) {
	if l.state == Terminated {
		return BoardHandle{}, ErrSessionClosed
	}

	for _, p := range l.patterns {
		cands, err := l.scan.SearchPattern(p, l.searchLo, l.searchHi)
		if err != nil {
			return BoardHandle{}, l.observeFatal(err)
		}
		for _, c := range cands {
			ok, err := l.inspect(c.Addr)
			if err != nil {
				return BoardHandle{}, err
			}
			if !ok {
				continue
			}
			h := NewBoardHandle(c.Addr)
			l.handle = &h
			l.state = Located
			l.log.Infoln("board located at", fmt.Sprintf("0x%x", c.Addr), "via pattern", c.Pattern)
			return h, nil
		}
	}
	return BoardHandle{}, ErrNoCandidate
}

// LocateAll collects every candidate address whose window validates, for
// callers that want to disambiguate interactively instead of taking the
// first hit.
func (l *Loop) LocateAll() ([]Candidate, error) {
	if l.state == Terminated {
		return nil, ErrSessionClosed
	}

	var validated []Candidate
	seen := make(map[uint64]bool)
	for _, p := range l.patterns {
		cands, err := l.scan.SearchPattern(p, l.searchLo, l.searchHi)
		if err != nil {
			return nil, l.observeFatal(err)
		}
		for _, c := range cands {
			if seen[c.Addr] {
				continue
			}
			seen[c.Addr] = true
			ok, err := l.inspect(c.Addr)
			if err != nil {
				return nil, err
			}
			if ok {
				validated = append(validated, c)
			}
		}
	}
	return validated, nil
}

// inspect reads a candidate window and validates it. A truncated dump makes
// the candidate unusable but is not fatal to the scan.
func (l *Loop) inspect(addr uint64) (bool, error) {
	w, err := l.scan.ReadWindow(addr, BoardCells)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return false, nil
		}
		return false, l.observeFatal(err)
	}
	return ValidBoard(w.Values), nil
}

// SetBoard pins the board to a caller-supplied address, bypassing the scan.
// The window still has to validate; accepting an arbitrary address would
// reintroduce the silent false positives the validator exists to reject.
func (l *Loop) SetBoard(addr uint64) (Snapshot, error) {
	if l.state == Terminated {
		return Snapshot{}, ErrSessionClosed
	}

	w, err := l.scan.ReadWindow(addr, BoardCells)
	if err != nil {
		return Snapshot{}, err
	}
	if !ValidBoard(w.Values) {
		return Snapshot{}, fmt.Errorf("window at 0x%x does not validate: %w", addr, ErrNoCandidate)
	}

	h := NewBoardHandle(addr)
	l.handle = &h
	if l.state == Unattached {
		l.state = Located
	}
	return NewSnapshot(w.Values), nil
}

// Arm installs the pause point on the input routine and resumes the target.
// It returns once the first pause is hit.
func (l *Loop) Arm() error {
	if l.state != Located {
		return fmt.Errorf("arm: loop is %s, not located", l.state)
	}

	bp, err := SetBreakpoint(retryRequester{l}, l.inputFn)
	if err != nil {
		return l.observeFatal(err)
	}
	l.bp = bp
	l.state = Armed
	return l.resume()
}

// Step services the current pause with the configured policy.
func (l *Loop) Step() (Snapshot, Action, error) {
	return l.service(func(s Snapshot) Action { return l.policy.ChooseAction(s) })
}

// Inject services the current pause with a caller-chosen action instead of
// consulting the policy.
func (l *Loop) Inject(a Action) (Snapshot, error) {
	snap, _, err := l.service(func(Snapshot) Action { return a })
	return snap, err
}

// service performs exactly one read-decide-inject cycle for the current
// pause and resumes the target. The loop never resumes without completing
// the cycle, so the target cannot advance on stale or missing input.
func (l *Loop) service(choose func(Snapshot) Action) (Snapshot, Action, error) {
	if l.state != Paused {
		return Snapshot{}, ActionNone, fmt.Errorf("step: loop is %s, not paused", l.state)
	}
	if l.handle == nil {
		return Snapshot{}, ActionNone, fmt.Errorf("step: board not located")
	}

	snap, err := l.scan.ReadBoard(*l.handle)
	if err != nil {
		return Snapshot{}, ActionNone, l.observeFatal(err)
	}

	act := choose(snap)
	if _, err := l.requestRetry(fmt.Sprintf("return (int)%d", act.Key())); err != nil {
		return snap, act, l.observeFatal(err)
	}

	l.pauses++
	if l.observe != nil {
		l.observe(snap, act)
	}

	l.state = Armed
	if err := l.resume(); err != nil {
		return snap, act, err
	}
	return snap, act, nil
}

// resume continues the target and classifies how it stopped.
func (l *Loop) resume() error {
	out, err := l.sess.RequestTimeout("continue", l.pauseWait)
	if err != nil {
		return l.observeFatal(err)
	}
	if targetExited(out) {
		l.state = Terminated
		l.log.Infoln("target exited after", l.pauses, "pauses")
		return nil
	}
	l.state = Paused
	return nil
}

// Play services up to moves pauses, arming first if needed. It reports how
// many pauses were serviced; fewer than asked means the target terminated.
func (l *Loop) Play(moves int) (int, error) {
	if l.state == Located {
		if err := l.Arm(); err != nil {
			return 0, err
		}
	}
	played := 0
	for played < moves && l.state == Paused {
		if _, _, err := l.Step(); err != nil {
			return played, err
		}
		played++
	}
	return played, nil
}

// Snapshot reads the current board without servicing a pause. Valid only
// while the owning session is alive.
func (l *Loop) Snapshot() (Snapshot, error) {
	if l.state == Terminated {
		return Snapshot{}, ErrSessionClosed
	}
	if l.handle == nil {
		return Snapshot{}, fmt.Errorf("snapshot: board not located")
	}
	return l.scan.ReadBoard(*l.handle)
}

// Break stops a free-running target and realigns the protocol.
func (l *Loop) Break() error {
	if err := l.sess.Interrupt(); err != nil {
		return l.observeFatal(err)
	}
	_, err := l.sess.Sync()
	if err != nil {
		return l.observeFatal(err)
	}
	return nil
}

// Continue resumes the target without injecting anything, for manual flows
// driven from the wrapper.
func (l *Loop) Continue() error {
	if l.state == Terminated {
		return ErrSessionClosed
	}
	return l.resume()
}

// Stop tears the session down. Any state may transition to Terminated; the
// board handle dies with the session.
func (l *Loop) Stop() error {
	l.state = Terminated
	l.handle = nil
	return l.sess.Close()
}

// requestRetry reissues a short command after a protocol timeout, up to the
// configured attempt count. A Sync between attempts swallows the late prompt
// if it ever shows up, so the retry cannot pair with stale output.
func (l *Loop) requestRetry(cmd string) (string, error) {
	for attempt := 0; ; attempt++ {
		out, err := l.sess.Request(cmd)
		var te *TimeoutError
		if !errors.As(err, &te) || attempt >= l.retries {
			return out, err
		}
		l.log.Infoln("timeout on", cmd, "- resyncing and retrying")
		if _, syncErr := l.sess.Sync(); syncErr != nil {
			l.log.Infoln("resync failed, giving up on", cmd)
			return out, err
		}
	}
}

func (l *Loop) observeFatal(err error) error {
	if errors.Is(err, ErrSessionClosed) {
		l.state = Terminated
	}
	return err
}

type retryRequester struct{ l *Loop }

func (r retryRequester) Request(cmd string) (string, error) {
	return r.l.requestRetry(cmd)
}

var exitedRe = regexp.MustCompile(`(?m)^\[?(Inferior \d+ .*exited|Program exited)`)

func targetExited(out string) bool { return exitedRe.MatchString(out) }
