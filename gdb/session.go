package gdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"
)

// DefaultPrompt is the sentinel gdb prints when it is ready for a command.
// It carries no trailing newline, so the reader matches it against partial
// lines.
const DefaultPrompt = "(gdb) "

const defaultTimeout = 5 * time.Second

type readEvent struct {
	line   string
	prompt bool
}

// Session owns a live gdb subprocess attached to the target binary. Every
// interaction with the target goes through Request; no other component
// writes to the subprocess or reads its output.
type Session struct {
	gdbPath    string
	target     string
	prompt     string
	timeout    time.Duration
	transcript io.Writer
	log        *logger.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan readEvent

	// mu serializes Request and Sync: the pipe is a single ordered byte
	// stream with one prompt per command, so only one may be in flight.
	mu       sync.Mutex
	stale    bool // a timed-out command's response is still owed
	closed   chan struct{}
	once     sync.Once
	waitDone chan struct{}
}

type Option func(*Session)

// WithGdbPath overrides the debugger executable, "gdb" by default.
func WithGdbPath(path string) Option {
	return func(s *Session) { s.gdbPath = path }
}

// WithPrompt overrides the prompt sentinel.
func WithPrompt(prompt string) Option {
	return func(s *Session) { s.prompt = prompt }
}

// WithTimeout bounds how long Request waits for the prompt.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithTranscript appends every command and response line to w.
func WithTranscript(w io.Writer) Option {
	return func(s *Session) { s.transcript = w }
}

func newSession(opts ...Option) *Session {
	s := &Session{
		gdbPath:  "gdb",
		prompt:   DefaultPrompt,
		timeout:  defaultTimeout,
		events:   make(chan readEvent, 64),
		closed:   make(chan struct{}),
		waitDone: make(chan struct{}),
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "gdb-session")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open launches gdb attached to the target binary, drains the banner up to
// the first prompt, and disables the interactive features that would
// otherwise corrupt command/response pairing.
func Open(target string, opts ...Option) (*Session, error) {
	s := newSession(opts...)
	s.target = target

	cmd := exec.Command(s.gdbPath, "-q", target)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: s.gdbPath, Err: err}
	}

	// One merged pipe for stdout and stderr keeps the output a single
	// ordered stream, the same channel the prompt sentinel travels on.
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, &LaunchError{Path: s.gdbPath, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Path: s.gdbPath, Err: err}
	}
	pw.Close()

	s.cmd = cmd
	s.stdin = stdin

	go func() {
		defer pr.Close()
		s.readLoop(pr)
	}()
	go func() {
		cmd.Wait()
		close(s.waitDone)
	}()

	if _, err := s.Sync(); err != nil {
		s.Close()
		return nil, err
	}
	for _, setup := range []string{"set pagination off", "set confirm off", "set print pretty on"} {
		if _, err := s.Request(setup); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.log.Infoln("gdb attached to", target, "pid", cmd.Process.Pid)
	return s, nil
}

// FromPipes builds a Session over an existing transport instead of a
// subprocess gdb owns. Interrupt is unavailable on such a session.
func FromPipes(in io.WriteCloser, out io.Reader, opts ...Option) *Session {
	s := newSession(opts...)
	s.stdin = in
	go s.readLoop(out)
	return s
}

// readLoop decodes the byte stream into lines and prompt markers, handing
// them to the control thread over the ordered events channel.
func (s *Session) readLoop(r io.Reader) {
	defer close(s.events)

	br := bufio.NewReader(r)
	var line []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if b == '\n' {
			ev := readEvent{line: strings.TrimRight(string(line), "\r")}
			line = line[:0]
			select {
			case s.events <- ev:
			case <-s.closed:
				return
			}
			continue
		}
		line = append(line, b)
		// The sentinel never ends in a newline. Matching only when it is
		// the entire line so far anchors it to the start of the line;
		// sentinel-like substrings inside program output stay inert.
		if len(line) == len(s.prompt) && string(line) == s.prompt {
			line = line[:0]
			select {
			case s.events <- readEvent{prompt: true}:
			case <-s.closed:
				return
			}
		}
	}
}

// Request writes one command line and blocks collecting output until the
// prompt sentinel appears at a line boundary. The wait is bounded by the
// session timeout.
func (s *Session) Request(command string) (string, error) {
	return s.RequestTimeout(command, s.timeout)
}

// RequestTimeout is Request with a per-command wait bound, for commands such
// as "run" or "continue" that only prompt again once the target stops.
func (s *Session) RequestTimeout(command string, wait time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return "", ErrSessionClosed
	default:
	}

	// A previous command timed out with its response still in flight.
	// Consume that response and its prompt first so this command does not
	// pair with stale output.
	if s.stale {
		if _, err := s.collect("<drain>", s.timeout); err != nil {
			return "", err
		}
	}

	s.echo(">>> " + command)
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		select {
		case <-s.closed:
			return "", ErrSessionClosed
		default:
		}
		return "", fmt.Errorf("write %q: %w", command, err)
	}

	return s.collect(command, wait)
}

// Sync discards output until the next prompt. Callers use it to realign
// command/response pairing after Interrupt, which produces a stop report
// and a prompt that no Request asked for.
func (s *Session) Sync() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect("<sync>", s.timeout)
}

func (s *Session) collect(command string, wait time.Duration) (string, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	var out strings.Builder
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return out.String(), fmt.Errorf("request %q: %w", command, ErrSessionClosed)
			}
			if ev.prompt {
				s.stale = false
				return out.String(), nil
			}
			s.echo(ev.line)
			out.WriteString(ev.line)
			out.WriteByte('\n')
		case <-timer.C:
			s.stale = true
			return out.String(), &TimeoutError{Command: command, Wait: wait}
		case <-s.closed:
			return out.String(), fmt.Errorf("request %q: %w", command, ErrSessionClosed)
		}
	}
}

// Interrupt delivers SIGINT to the debugger, which stops the running target.
// It does not wait for the prompt; the target may be mid-execution. The
// caller must Sync before issuing the next Request.
func (s *Session) Interrupt() error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	if s.cmd == nil || s.cmd.Process == nil {
		return fmt.Errorf("interrupt: session has no subprocess")
	}
	s.echo(">>> ^C")
	return unix.Kill(s.cmd.Process.Pid, unix.SIGINT)
}

// Close terminates the subprocess and unblocks any in-flight Request, which
// fails with ErrSessionClosed instead of hanging. Safe to call more than
// once and on every exit path.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.stdin.Close()
		if s.cmd != nil {
			if s.cmd.Process != nil {
				s.cmd.Process.Kill()
			}
			<-s.waitDone
			s.log.Infoln("gdb session for", s.target, "closed")
		}
	})
	return nil
}

// Alive reports whether the session can still take requests.
func (s *Session) Alive() bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	if s.cmd == nil {
		return true
	}
	select {
	case <-s.waitDone:
		return false
	default:
		return true
	}
}

// Pid returns the debugger's process id, or 0 for a pipe-backed session.
func (s *Session) Pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Target returns the binary the session was opened against.
func (s *Session) Target() string { return s.target }

func (s *Session) echo(line string) {
	if s.transcript != nil {
		fmt.Fprintln(s.transcript, line)
	}
}
