package gdb

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGdb wires a Session to an in-memory responder: commands written by
// the session are answered line-for-line by respond.
type scriptedGdb struct {
	sess *Session
	out  *io.PipeWriter
}

func newScriptedGdb(t *testing.T, timeout time.Duration, respond func(cmd string, out *io.PipeWriter)) *scriptedGdb {
	t.Helper()

	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()

	go func() {
		sc := bufio.NewScanner(cmdR)
		for sc.Scan() {
			respond(sc.Text(), outW)
		}
	}()

	sess := FromPipes(cmdW, outR, WithTimeout(timeout))
	t.Cleanup(func() {
		sess.Close()
		outW.Close()
	})
	return &scriptedGdb{sess: sess, out: outW}
}

func prompt(out *io.PipeWriter) {
	io.WriteString(out, DefaultPrompt)
}

func TestRequestPairsCommandWithOutput(t *testing.T) {
	g := newScriptedGdb(t, time.Second, func(cmd string, out *io.PipeWriter) {
		io.WriteString(out, "reply to "+cmd+"\n")
		prompt(out)
	})

	out, err := g.sess.Request("info registers")
	require.NoError(t, err)
	assert.Equal(t, "reply to info registers\n", out)

	out, err = g.sess.Request("x/4wx 0x601040")
	require.NoError(t, err)
	assert.Equal(t, "reply to x/4wx 0x601040\n", out)
}

func TestPromptMatchesOnlyAtLineStart(t *testing.T) {
	g := newScriptedGdb(t, time.Second, func(cmd string, out *io.PipeWriter) {
		// sentinel-like substring embedded in program output
		io.WriteString(out, "game printed (gdb) mid-line\n")
		io.WriteString(out, "second line\n")
		prompt(out)
	})

	out, err := g.sess.Request("continue")
	require.NoError(t, err)
	assert.Equal(t, "game printed (gdb) mid-line\nsecond line\n", out)
}

func TestRequestTimesOutWithoutPrompt(t *testing.T) {
	g := newScriptedGdb(t, 50*time.Millisecond, func(cmd string, out *io.PipeWriter) {
		io.WriteString(out, "still thinking\n")
	})

	out, err := g.sess.Request("run")
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "run", te.Command)
	assert.Equal(t, "still thinking\n", out)
}

func TestRequestAfterTimeoutDrainsStaleResponse(t *testing.T) {
	g := newScriptedGdb(t, 50*time.Millisecond, func(cmd string, out *io.PipeWriter) {
		if cmd == "slow" {
			go func() {
				time.Sleep(100 * time.Millisecond)
				io.WriteString(out, "late answer to slow\n")
				prompt(out)
			}()
			return
		}
		io.WriteString(out, "answer to "+cmd+"\n")
		prompt(out)
	})

	_, err := g.sess.Request("slow")
	var te *TimeoutError
	require.ErrorAs(t, err, &te)

	// let the late response land in the event queue
	time.Sleep(150 * time.Millisecond)

	out, err := g.sess.Request("fast")
	require.NoError(t, err)
	assert.Equal(t, "answer to fast\n", out)
}

func TestSyncRealignsAfterTimeout(t *testing.T) {
	g := newScriptedGdb(t, 50*time.Millisecond, func(cmd string, out *io.PipeWriter) {
		if cmd == "slow" {
			go func() {
				time.Sleep(100 * time.Millisecond)
				io.WriteString(out, "late answer to slow\n")
				prompt(out)
			}()
			return
		}
		io.WriteString(out, "answer to "+cmd+"\n")
		prompt(out)
	})

	_, err := g.sess.Request("slow")
	var te *TimeoutError
	require.ErrorAs(t, err, &te)

	time.Sleep(150 * time.Millisecond)

	// Sync consumes the late response and its prompt, so the next request
	// pairs with its own output without an extra drain.
	out, err := g.sess.Sync()
	require.NoError(t, err)
	assert.Contains(t, out, "late answer to slow")

	out, err = g.sess.Request("fast")
	require.NoError(t, err)
	assert.Equal(t, "answer to fast\n", out)
}

func TestOpenFailsWhenDebuggerMissing(t *testing.T) {
	_, err := Open("/no/such/target", WithGdbPath("/no/such/gdb"))
	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "/no/such/gdb", le.Path)
}

func TestRequestAfterCloseFailsFast(t *testing.T) {
	g := newScriptedGdb(t, time.Second, func(cmd string, out *io.PipeWriter) {
		prompt(out)
	})

	require.NoError(t, g.sess.Close())

	done := make(chan error, 1)
	go func() {
		_, err := g.sess.Request("info breakpoints")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("request after close hung")
	}
}

func TestCloseUnblocksInflightRequest(t *testing.T) {
	g := newScriptedGdb(t, 10*time.Second, func(cmd string, out *io.PipeWriter) {
		// never answer
	})

	done := make(chan error, 1)
	go func() {
		_, err := g.sess.Request("run")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, g.sess.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("in-flight request did not fail after close")
	}
}

func TestSyncRealignsAfterUnsolicitedPrompt(t *testing.T) {
	g := newScriptedGdb(t, time.Second, func(cmd string, out *io.PipeWriter) {
		io.WriteString(out, "reply to "+cmd+"\n")
		prompt(out)
	})

	// simulate the stop report an interrupt produces
	go func() {
		io.WriteString(g.out, "Program received signal SIGINT, Interrupt.\n")
		prompt(g.out)
	}()

	out, err := g.sess.Sync()
	require.NoError(t, err)
	assert.Contains(t, out, "SIGINT")

	out, err = g.sess.Request("info frame")
	require.NoError(t, err)
	assert.Equal(t, "reply to info frame\n", out)
}

func TestAliveReflectsClose(t *testing.T) {
	g := newScriptedGdb(t, time.Second, func(cmd string, out *io.PipeWriter) {
		prompt(out)
	})

	assert.True(t, g.sess.Alive())
	require.NoError(t, g.sess.Close())
	assert.False(t, g.sess.Alive())
}
