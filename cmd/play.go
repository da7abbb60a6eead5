package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aygp-dr/gdb-game-ai/experiment"
	"github.com/aygp-dr/gdb-game-ai/gdb"
	"github.com/aygp-dr/gdb-game-ai/render"
)

func newPlayCmd(v *viper.Viper) *cobra.Command {
	var (
		moves      int
		policyName string
		record     string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Launch the target, locate the board, and let the policy play",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			policy, err := pickPolicy(policyName)
			if err != nil {
				return err
			}

			var rec *experiment.Recorder
			if record != "" {
				rec, err = experiment.NewRecorder(cfg.ExperimentsDir, record,
					fmt.Sprintf("policy=%s moves=%d target=%s", policyName, moves, cfg.Target))
				if err != nil {
					return err
				}
			}

			observer := func(s gdb.Snapshot, a gdb.Action) {
				if rec != nil {
					rec.Observe(s, a)
				}
				if !quiet {
					fmt.Println(render.Board(s))
					Printf("-> %s\n", a.String())
				}
			}

			loop, _, cleanup, err := openLoop(cfg, policy, gdb.WithObserver(observer))
			if err != nil {
				return err
			}
			defer cleanup()

			if err := loop.Launch(); err != nil {
				return err
			}
			h, err := loop.Locate()
			if err != nil {
				if errors.Is(err, gdb.ErrNoCandidate) {
					return fmt.Errorf("no board found in 0x%x-0x%x; let the game place a tile first or widen the range", cfg.SearchLow, cfg.SearchHigh)
				}
				return err
			}
			Printf("board at 0x%x\n", h.Base)

			played, err := loop.Play(moves)
			if err != nil {
				return err
			}
			Printf("played %d moves, loop is %s\n", played, loop.State().String())

			if rec != nil {
				path, err := rec.Finish(loop.State())
				if err != nil {
					return err
				}
				Printf("results saved to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&moves, "moves", 50, "number of pauses to service before stopping")
	cmd.Flags().StringVar(&policyName, "policy", "basic", "decision policy: basic, or a fixed direction (up/down/left/right)")
	cmd.Flags().StringVar(&record, "record", "", "record the run under the experiments dir with this name")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the per-move board print")
	return cmd
}
