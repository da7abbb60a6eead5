package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aygp-dr/gdb-game-ai/gdb"
	"github.com/aygp-dr/gdb-game-ai/render"
)

// repl holds the live session for the interactive shell. The scanner shares
// the session so raw dumps and board reads go through the same parser.
type repl struct {
	loop *gdb.Loop
	sess *gdb.Session
	scan *gdb.Scanner
}

type cmdHandler struct {
	regex *regexp.Regexp
	fn    func(*repl, []string) error
}

const numPat = `0[xX][0-9a-fA-F]+|0[0-7]+|[1-9][0-9]*|0`

var compiledCmds = []cmdHandler{
	{regexp.MustCompile(`^\s*(start|run|s)\s*$`), (*repl).cmdStart},
	{regexp.MustCompile(`^\s*(locate|find-board|f)\s*$`), (*repl).cmdLocate},
	{regexp.MustCompile(`^\s*(board|b)\s*$`), (*repl).cmdBoard},
	{regexp.MustCompile(`^\s*(set-board)\s+(` + numPat + `)$`), (*repl).cmdSetBoard},
	{regexp.MustCompile(`^\s*(arm)\s*$`), (*repl).cmdArm},
	{regexp.MustCompile(`^\s*(m|move)\s+(up|down|left|right|w|s|a|d)\s*$`), (*repl).cmdMove},
	{regexp.MustCompile(`^\s*(m|move)\s*$`), (*repl).cmdAuto},
	{regexp.MustCompile(`^\s*(play)\s+([1-9][0-9]*)\s*$`), (*repl).cmdPlay},
	{regexp.MustCompile(`^\s*(x|dump)\s+(` + numPat + `)(?:\s+(` + numPat + `))?$`), (*repl).cmdDump},
	{regexp.MustCompile(`^\s*(c|continue|cont)\s*$`), (*repl).cmdContinue},
	{regexp.MustCompile(`^\s*(status)\s*$`), (*repl).cmdStatus},
	{regexp.MustCompile(`^\s*(!)(.+)$`), (*repl).cmdRaw},
	{regexp.MustCompile(`^\s*(help|h|\?)\s*$`), (*repl).cmdHelp},
}

func (r *repl) cmdExec(req string) error {
	for _, handler := range compiledCmds {
		if m := handler.regex.FindStringSubmatch(req); m != nil {
			return handler.fn(r, m)
		}
	}
	return errors.New("unknown command, try help")
}

func (r *repl) cmdStart(_ []string) error {
	if err := r.loop.Launch(); err != nil {
		return err
	}
	Printf("target running under gdb, stopped for scanning\n")
	return nil
}

func (r *repl) cmdLocate(_ []string) error {
	h, err := r.loop.Locate()
	if err != nil {
		return err
	}
	Printf("board at 0x%x\n", h.Base)
	return r.cmdBoard(nil)
}

func (r *repl) cmdBoard(_ []string) error {
	snap, err := r.loop.Snapshot()
	if err != nil {
		return err
	}
	fmt.Println(render.Board(snap))
	return nil
}

func (r *repl) cmdSetBoard(args []string) error {
	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	snap, err := r.loop.SetBoard(addr)
	if err != nil {
		return err
	}
	Printf("board pinned at 0x%x\n", addr)
	fmt.Println(render.Board(snap))
	return nil
}

func (r *repl) cmdArm(_ []string) error {
	if err := r.loop.Arm(); err != nil {
		return err
	}
	Printf("pause point installed, target paused on input\n")
	return nil
}

func (r *repl) cmdMove(args []string) error {
	a, err := gdb.ParseAction(args[2])
	if err != nil {
		return err
	}
	if r.loop.State() == gdb.Located {
		if err := r.loop.Arm(); err != nil {
			return err
		}
	}
	snap, err := r.loop.Inject(a)
	if err != nil {
		return err
	}
	fmt.Println(render.Board(snap))
	Printf("-> %s\n", a.String())
	return nil
}

func (r *repl) cmdAuto(_ []string) error {
	if r.loop.State() == gdb.Located {
		if err := r.loop.Arm(); err != nil {
			return err
		}
	}
	snap, a, err := r.loop.Step()
	if err != nil {
		return err
	}
	fmt.Println(render.Board(snap))
	Printf("-> %s\n", a.String())
	return nil
}

func (r *repl) cmdPlay(args []string) error {
	moves, err := strconv.Atoi(args[2])
	if err != nil {
		return err
	}
	played, err := r.loop.Play(moves)
	if err != nil {
		return err
	}
	Printf("played %d moves, loop is %s\n", played, r.loop.State().String())
	return r.cmdBoard(nil)
}

func (r *repl) cmdDump(args []string) error {
	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	count := 16
	if len(args) > 3 && args[3] != "" {
		n, err := strconv.ParseUint(args[3], 0, 32)
		if err != nil {
			return err
		}
		count = int(n)
	}

	w, err := r.scan.ReadWindow(addr, count)
	if err != nil {
		return err
	}
	for i := 0; i < len(w.Values); i += 4 {
		fmt.Printf("%s0x%016x%s: ", ColorCyan, addr+uint64(i*4), ColorReset)
		for j := i; j < i+4 && j < len(w.Values); j++ {
			fmt.Printf("0x%08x ", w.Values[j])
		}
		fmt.Println()
	}
	return nil
}

func (r *repl) cmdContinue(_ []string) error {
	return r.loop.Continue()
}

func (r *repl) cmdStatus(_ []string) error {
	fmt.Println(render.Status(r.loop.State(), r.loop.Pauses()))
	if h, ok := r.loop.Board(); ok {
		Printf("board at 0x%x\n", h.Base)
	}
	return nil
}

func (r *repl) cmdRaw(args []string) error {
	out, err := r.sess.Request(args[2])
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func (r *repl) cmdHelp(_ []string) error {
	hLine("commands")
	fmt.Println("  start              launch the target and stop it for scanning")
	fmt.Println("  locate             scan for the board and pin the first validated hit")
	fmt.Println("  board              show the current board")
	fmt.Println("  set-board ADDR     pin the board to a known address")
	fmt.Println("  arm                break on the input routine and run to the first pause")
	fmt.Println("  move [DIR]         inject a direction, or let the policy pick one")
	fmt.Println("  play N             service N pauses with the policy")
	fmt.Println("  x ADDR [N]         dump N 32-bit words at ADDR")
	fmt.Println("  continue           resume without injecting")
	fmt.Println("  status             loop state and pause count")
	fmt.Println("  !CMD               send a raw gdb command")
	fmt.Println("  quit               tear down the session and exit")
	return nil
}

func newReplCmd(v *viper.Viper) *cobra.Command {
	var policyName string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell over the gdb session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			policy, err := pickPolicy(policyName)
			if err != nil {
				return err
			}

			loop, sess, cleanup, err := openLoop(cfg, policy)
			if err != nil {
				return err
			}
			defer cleanup()

			r := &repl{loop: loop, sess: sess, scan: gdb.NewScanner(sess)}
			return r.interactive()
		},
	}
	cmd.Flags().StringVar(&policyName, "policy", "basic", "decision policy for move and play")
	return cmd
}

func (r *repl) interactive() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	defer signal.Stop(sigChan)

	// Ctrl+C stops a free-running target instead of killing the shell.
	go func() {
		for range sigChan {
			Printf("\n^C - interrupting target...\n")
			if err := r.loop.Break(); err != nil {
				LogError("failed to interrupt target: %v", err)
			}
		}
	}()

	prev := ""

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[gdb-game-ai]$ ",
		HistoryFile:       "/tmp/gdb_game_ai_history.txt",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		rl.SetPrompt(fmt.Sprintf("[%sgdb-game-ai%s:%s%s%s]$ ",
			ColorCyan, ColorReset, ColorCyan, r.loop.State().String(), ColorReset))

		req, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if err := r.loop.Break(); err != nil {
					LogError("failed to interrupt target: %v", err)
				}
				continue
			}
			if err == io.EOF {
				break
			}
			continue
		}

		if req == "" {
			if prev == "" {
				continue
			}
			req = prev
		}

		if req == "q" || req == "exit" || req == "quit" {
			break
		}

		prev = req

		if err := r.cmdExec(req); err != nil {
			LogError(err.Error())
		}
	}

	return r.loop.Stop()
}
