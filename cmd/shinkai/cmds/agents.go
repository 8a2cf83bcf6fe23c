package cmds

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/api"
)

type agentRow struct {
	ID               string `json:"id"`
	FullIdentityName string `json:"full_identity_name"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	ExternalURL      string `json:"external_url,omitempty"`
}

func newAgentsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agents",
		Aliases: []string{"llm-providers"},
		Short:   "Manage the LLM providers of the node",
	}

	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List LLM providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := env.Client.GetLLMProviders(cmd.Context())
			if err != nil {
				return err
			}
			rows := []agentRow{}
			for _, p := range providers {
				provider, model := p.Model.Provider()
				ok, err := matchAny(filter, p.ID, provider, model)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				rows = append(rows, agentRow{
					ID:               p.ID,
					FullIdentityName: p.FullIdentityName,
					Provider:         provider,
					Model:            model,
					ExternalURL:      p.ExternalURL,
				})
			}
			return env.print(cmd.OutOrStdout(), rows)
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "", "Glob matched against id, provider and model")
	cmd.AddCommand(listCmd)

	var provider, model, externalURL, apiKey, profile string
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register an LLM provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" || model == "" {
				return errors.New("--provider and --model are required")
			}
			ctx := cmd.Context()
			health, err := env.Client.Health(ctx)
			if err != nil {
				return errors.Wrap(err, "could not find the node identity")
			}
			p := api.LLMProvider{
				ID:               args[0],
				FullIdentityName: api.FullIdentityName(health.NodeName, profile, args[0]),
				ExternalURL:      externalURL,
				APIKey:           apiKey,
				Model:            api.NewModel(provider, model),
			}
			if err := env.Client.AddLLMProvider(ctx, p); err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), agentRow{
				ID:               p.ID,
				FullIdentityName: p.FullIdentityName,
				Provider:         provider,
				Model:            model,
				ExternalURL:      externalURL,
			})
		},
	}
	f := addCmd.Flags()
	f.StringVar(&provider, "provider", "", "Provider of the model, e.g. OpenAI or Ollama")
	f.StringVar(&model, "model", "", "Model type, e.g. gpt-4o")
	f.StringVar(&externalURL, "external-url", "", "Base URL of the provider API")
	f.StringVar(&apiKey, "api-key", "", "API key of the provider")
	f.StringVar(&profile, "profile", "main", "Node profile the agent belongs to")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an LLM provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.Client.RemoveLLMProvider(cmd.Context(), args[0])
		},
	})

	return cmd
}
