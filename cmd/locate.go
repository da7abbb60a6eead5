package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aygp-dr/gdb-game-ai/ai"
	"github.com/aygp-dr/gdb-game-ai/gdb"
	"github.com/aygp-dr/gdb-game-ai/render"
)

func newLocateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Find every plausible board in target memory and pick one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			loop, _, cleanup, err := openLoop(cfg, ai.Basic{})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := loop.Launch(); err != nil {
				return err
			}

			cands, err := loop.LocateAll()
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				return fmt.Errorf("no candidate validated in 0x%x-0x%x: %w",
					cfg.SearchLow, cfg.SearchHigh, gdb.ErrNoCandidate)
			}

			chosen := cands[0]
			if len(cands) > 1 {
				items := make([]string, len(cands))
				for i, c := range cands {
					items[i] = fmt.Sprintf("0x%x (pattern %s)", c.Addr, c.Pattern)
				}
				sel := promptui.Select{
					Label: fmt.Sprintf("%d candidates validated, pick the board", len(cands)),
					Items: items,
				}
				idx, _, err := sel.Run()
				if err != nil {
					return err
				}
				chosen = cands[idx]
			}

			snap, err := loop.SetBoard(chosen.Addr)
			if err != nil {
				return err
			}

			Printf("board pinned at 0x%x via pattern %s\n", chosen.Addr, chosen.Pattern)
			fmt.Println(render.Board(snap))
			return nil
		},
	}
	return cmd
}
