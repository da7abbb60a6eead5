// Package cmd wires the command line surface: subcommands for playing,
// locating, the interactive shell, the HTTP bridge, and source analysis.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aygp-dr/gdb-game-ai/ai"
	"github.com/aygp-dr/gdb-game-ai/gdb"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "gdb-game-ai",
		Short:         "Drive a 2048 binary through gdb: find the board in memory and inject moves",
		Long:          "gdb-game-ai launches a curses 2048 under gdb, locates the board by scanning for known tile patterns, breaks on the input routine, and forces its return value to whatever the decision policy picks.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("target", "/usr/local/bin/2048", "game binary to drive")
	flags.String("gdb", "gdb", "gdb executable")
	flags.String("search-low", "0x400000", "low end of the board search range")
	flags.String("search-high", "0x700000", "high end of the board search range")
	flags.Duration("timeout", 5*time.Second, "per-command protocol timeout")
	flags.Duration("pause-wait", 30*time.Second, "how long to wait for the next input pause")
	flags.Duration("run-window", 2*time.Second, "how long the target runs freely before the first scan")
	flags.String("transcript", "", "append the raw gdb dialogue to this file")
	flags.String("patterns", "", "TOML pattern library overriding the built-in one")
	flags.String("experiments-dir", "experiments", "directory recorded runs are saved under")

	for _, name := range []string{
		"target", "gdb", "search-low", "search-high", "timeout",
		"pause-wait", "run-window", "transcript", "patterns", "experiments-dir",
	} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("GDB_GAME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gdb-game-ai")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.config")
	}

	rootCmd.AddCommand(
		newPlayCmd(v),
		newLocateCmd(v),
		newReplCmd(v),
		newWebCmd(v),
		newWatchCmd(),
		newAnalyzeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

type config struct {
	Target         string
	GdbPath        string
	SearchLow      uint64
	SearchHigh     uint64
	Timeout        time.Duration
	PauseWait      time.Duration
	RunWindow      time.Duration
	Transcript     string
	Patterns       []gdb.Pattern
	ExperimentsDir string
}

func loadConfig(v *viper.Viper) (config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := config{
		Target:         v.GetString("target"),
		GdbPath:        v.GetString("gdb"),
		Timeout:        v.GetDuration("timeout"),
		PauseWait:      v.GetDuration("pause-wait"),
		RunWindow:      v.GetDuration("run-window"),
		Transcript:     v.GetString("transcript"),
		ExperimentsDir: v.GetString("experiments-dir"),
	}

	var err error
	cfg.SearchLow, err = strconv.ParseUint(v.GetString("search-low"), 0, 64)
	if err != nil {
		return config{}, fmt.Errorf("bad search-low: %w", err)
	}
	cfg.SearchHigh, err = strconv.ParseUint(v.GetString("search-high"), 0, 64)
	if err != nil {
		return config{}, fmt.Errorf("bad search-high: %w", err)
	}
	if cfg.SearchLow >= cfg.SearchHigh {
		return config{}, fmt.Errorf("search range is empty: 0x%x >= 0x%x", cfg.SearchLow, cfg.SearchHigh)
	}

	if path := v.GetString("patterns"); path != "" {
		cfg.Patterns, err = gdb.LoadPatterns(path)
		if err != nil {
			return config{}, fmt.Errorf("load patterns: %w", err)
		}
	}

	return cfg, nil
}

// openLoop starts a gdb session against the configured target and builds a
// loop around it. The returned cleanup closes the session and any transcript.
func openLoop(cfg config, policy gdb.Policy, extra ...gdb.LoopOption) (*gdb.Loop, *gdb.Session, func(), error) {
	sessOpts := []gdb.Option{
		gdb.WithGdbPath(cfg.GdbPath),
		gdb.WithTimeout(cfg.Timeout),
	}

	var transcript *os.File
	if cfg.Transcript != "" {
		f, err := os.OpenFile(cfg.Transcript, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open transcript: %w", err)
		}
		transcript = f
		sessOpts = append(sessOpts, gdb.WithTranscript(f))
	}

	sess, err := gdb.Open(cfg.Target, sessOpts...)
	if err != nil {
		if transcript != nil {
			transcript.Close()
		}
		return nil, nil, nil, err
	}

	loopOpts := []gdb.LoopOption{
		gdb.WithSearchRange(cfg.SearchLow, cfg.SearchHigh),
		gdb.WithRunWindow(cfg.RunWindow),
		gdb.WithPauseWait(cfg.PauseWait),
	}
	if len(cfg.Patterns) > 0 {
		loopOpts = append(loopOpts, gdb.WithPatterns(cfg.Patterns))
	}
	loopOpts = append(loopOpts, extra...)

	loop := gdb.NewLoop(sess, policy, loopOpts...)
	cleanup := func() {
		sess.Close()
		if transcript != nil {
			transcript.Close()
		}
	}
	return loop, sess, cleanup, nil
}

// pickPolicy maps a flag value to a policy: "basic" plays the priority
// heuristic, a direction word plays that direction every pause.
func pickPolicy(name string) (gdb.Policy, error) {
	if name == "" || name == "basic" {
		return ai.Basic{}, nil
	}
	a, err := gdb.ParseAction(name)
	if err != nil {
		return nil, fmt.Errorf("unknown policy %q: want basic or a direction", name)
	}
	return ai.Constant{Action: a}, nil
}
