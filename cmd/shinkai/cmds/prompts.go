package cmds

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/api"
)

func newPromptsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage custom prompts",
	}

	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := env.Client.GetAllPrompts(cmd.Context())
			if err != nil {
				return err
			}
			ret := []api.Prompt{}
			for _, p := range prompts {
				ok, err := matchAny(filter, p.Name)
				if err != nil {
					return err
				}
				if ok {
					ret = append(ret, p)
				}
			}
			return env.print(cmd.OutOrStdout(), ret)
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "", "Glob matched against the prompt name")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := env.Client.SearchPrompts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), prompts)
		},
	})

	var system, favorite bool
	createCmd := &cobra.Command{
		Use:   "create <name> <prompt>",
		Short: "Create a prompt",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := env.Client.CreatePrompt(cmd.Context(), api.Prompt{
				Name:       args[0],
				Prompt:     strings.Join(args[1:], " "),
				IsSystem:   system,
				IsEnabled:  true,
				IsFavorite: favorite,
				Version:    "1",
			})
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), p)
		},
	}
	createCmd.Flags().BoolVar(&system, "system", false, "Mark as system prompt")
	createCmd.Flags().BoolVar(&favorite, "favorite", false, "Mark as favorite")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.Client.DeletePrompt(cmd.Context(), args[0])
		},
	})

	return cmd
}
