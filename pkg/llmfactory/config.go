package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AssistantModels specifies the mapping of agents to models.
	// key is the agent name, value is the list of preferred model names.
	// Use `default: <model_name>` as the default model for agents.
	AssistantModels map[string][]string `json:"assistant_models" yaml:"assistant_models"`
}

// ProviderConfig for a model provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Type specifies the provider:
	// OLLAMA|OPENAI|ANTHROPIC|GOOGLEAI|BEDROCK
	Type            string   `json:"type" yaml:"type" validate:"required"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	// TimeoutSeconds bounds one model call, the provider default is used when zero
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"gte=0"`

	OpenAI   OpenAIConfig   `json:"open_ai" yaml:"open_ai"`
	GoogleAI GoogleAIConfig `json:"google_ai" yaml:"google_ai"`
	Bedrock  BedrockConfig  `json:"bedrock" yaml:"bedrock"`
}

// OpenAIConfig specifies OpenAI options
type OpenAIConfig struct {
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
}

// GoogleAIConfig specifies Gemini options,
// the Vertex AI backend is used when CloudProject is set
type GoogleAIConfig struct {
	CloudProject  string `json:"cloud_project,omitempty" yaml:"cloud_project,omitempty"`
	CloudLocation string `json:"cloud_location,omitempty" yaml:"cloud_location,omitempty"`
}

// BedrockConfig specifies AWS Bedrock options,
// the default AWS credentials chain is used when the keys are not set
type BedrockConfig struct {
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
}

func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// DefaultConfig returns config with the local Ollama provider
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "ollama",
		Providers: []*ProviderConfig{
			{
				Name: "ollama",
				Type: "OLLAMA",
			},
		},
	}
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
