package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ModelType names the concrete model of a provider, e.g. "gpt-4o".
type ModelType struct {
	ModelType string `json:"model_type"`
}

// Model is serialized by the node as a single-key object keyed by provider:
// {"OpenAI": {"model_type": "gpt-4o"}}.
type Model map[string]ModelType

func NewModel(provider string, modelType string) Model {
	return Model{provider: {ModelType: modelType}}
}

// Provider returns the provider key and model type of a single-key model.
func (m Model) Provider() (string, string) {
	for k, v := range m {
		return k, v.ModelType
	}
	return "", ""
}

type LLMProvider struct {
	ID                       string   `json:"id"`
	FullIdentityName         string   `json:"full_identity_name"`
	ExternalURL              string   `json:"external_url,omitempty"`
	APIKey                   string   `json:"api_key,omitempty"`
	Model                    Model    `json:"model"`
	PerformLocally           bool     `json:"perform_locally"`
	AllowedMessageSenders    []string `json:"allowed_message_senders"`
	StorageBucketPermissions []string `json:"storage_bucket_permissions"`
	ToolkitPermissions       []string `json:"toolkit_permissions"`
}

// FullIdentityName is the identity an agent is registered under.
func FullIdentityName(shinkaiIdentity string, profile string, agentID string) string {
	return fmt.Sprintf("%s/%s/agent/%s", shinkaiIdentity, profile, agentID)
}

func (c *Client) GetLLMProviders(ctx context.Context) ([]LLMProvider, error) {
	var ret []LLMProvider
	if err := c.get(ctx, "/v2/available_llm_providers", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) AddLLMProvider(ctx context.Context, provider LLMProvider) error {
	if provider.ID == "" {
		return errors.New("llm provider id is required")
	}
	if len(provider.Model) != 1 {
		return errors.Errorf("llm provider %s needs exactly one model, got %d", provider.ID, len(provider.Model))
	}
	if provider.AllowedMessageSenders == nil {
		provider.AllowedMessageSenders = []string{}
	}
	if provider.StorageBucketPermissions == nil {
		provider.StorageBucketPermissions = []string{}
	}
	if provider.ToolkitPermissions == nil {
		provider.ToolkitPermissions = []string{}
	}
	return c.post(ctx, "/v2/add_llm_provider", nil, provider, nil)
}

func (c *Client) RemoveLLMProvider(ctx context.Context, id string) error {
	return c.post(ctx, "/v2/remove_llm_provider", nil, map[string]string{"llm_provider_id": id}, nil)
}
