package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aygp-dr/gdb-game-ai/web"
)

func newWebCmd(v *viper.Viper) *cobra.Command {
	var (
		listen     string
		policyName string
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the control loop over a JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			policy, err := pickPolicy(policyName)
			if err != nil {
				return err
			}

			loop, _, cleanup, err := openLoop(cfg, policy)
			if err != nil {
				return err
			}
			defer cleanup()

			bridge := web.NewBridge(loop)
			Printf("bridge listening on %s, POST /start to launch the target\n", listen)
			return http.ListenAndServe(listen, bridge.Handler())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:5000", "address to serve the API on")
	cmd.Flags().StringVar(&policyName, "policy", "basic", "decision policy for auto moves")
	return cmd
}
