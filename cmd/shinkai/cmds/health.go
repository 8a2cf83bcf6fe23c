package cmds

import (
	"github.com/spf13/cobra"
)

func newHealthCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the node answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := env.Client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), health)
		},
	}
}
