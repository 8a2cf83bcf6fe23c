package cmds

import (
	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/api"
)

func filterToolHeaders(headers []api.ToolHeader, filter string) ([]api.ToolHeader, error) {
	ret := []api.ToolHeader{}
	for _, h := range headers {
		ok, err := matchAny(filter, h.Name, h.ToolRouterKey)
		if err != nil {
			return nil, err
		}
		if ok {
			ret = append(ret, h)
		}
	}
	return ret, nil
}

func newToolsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Browse the tools installed on the node",
	}

	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, err := env.Client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			headers, err = filterToolHeaders(headers, filter)
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), headers)
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "", "Glob matched against name and tool router key")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <tool-router-key>",
		Short: "Print one tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := env.Client.GetTool(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), tool)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, err := env.Client.SearchTools(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), headers)
		},
	})

	return cmd
}
