package config_test

import (
	"testing"
	"time"

	"github.com/effective-security/mcpagent/config"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load("testdata/mcpagent.yaml")
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 30, cfg.MCP.TimeoutSeconds)
	assert.Equal(t, config.DefaultProtocolVersion, cfg.MCP.ProtocolVersion)
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Agent.BreakRepeatedToolCalls)
	assert.True(t, cfg.Agent.LocalTools)
	assert.Equal(t, 0.2, cfg.Agent.Temperature)
	assert.Equal(t, 1024, cfg.Agent.MaxTokens)
	assert.Equal(t, 2, cfg.MultiAgent.MaxSpecialistRounds)
	assert.Equal(t, "tvly-test", cfg.Tools.TavilyAPIKey)

	require.NotNil(t, cfg.LLM)
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, "sk-test", cfg.LLM.Providers[0].Token)
	assert.Equal(t, []string{"llama3.2:1b"}, cfg.LLM.AssistantModels["researcher"])

	tc, err := cfg.Transport()
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "-u", "/opt/mcp servers/host.py", "--quiet"}, tc.Command)
	assert.Equal(t, 30*time.Second, tc.Timeout)
	assert.Equal(t, config.DefaultProtocolVersion, tc.ProtocolVersion)
	assert.Equal(t, "mcpagent-test", tc.ClientInfo.Name)
	assert.Equal(t, stdiotransport.DefaultClientInfo.Version, tc.ClientInfo.Version)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.MCP.Command)
	assert.Equal(t, config.DefaultTimeoutSeconds, cfg.MCP.TimeoutSeconds)
	assert.Equal(t, config.DefaultProtocolVersion, cfg.MCP.ProtocolVersion)
	assert.Equal(t, config.DefaultMaxSteps, cfg.Agent.MaxSteps)
	assert.Equal(t, config.DefaultMaxSpecialistRounds, cfg.MultiAgent.MaxSpecialistRounds)
	assert.Equal(t, config.DefaultHistoryLimit, cfg.Agent.HistoryLimit)
	assert.Equal(t, llmfactory.DefaultConfig(), cfg.LLM)

	args, err := cfg.CommandLine()
	require.NoError(t, err)
	assert.Nil(t, args)

	tc, err := cfg.Transport()
	require.NoError(t, err)
	assert.Empty(t, tc.Command)
	assert.Equal(t, 15*time.Second, tc.Timeout)
	assert.Equal(t, stdiotransport.DefaultClientInfo, tc.ClientInfo)
}

func TestLoad_BuiltinHost(t *testing.T) {
	orig := config.Executable
	defer func() {
		config.Executable = orig
	}()
	config.Executable = func() (string, error) {
		return "/usr/local/bin/mcpagent", nil
	}

	cfg, err := config.Load("testdata/builtin.yaml")
	require.NoError(t, err)

	args, err := cfg.CommandLine()
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/local/bin/mcpagent", config.ToolHostCommand}, args)

	// providers fall back to local ollama, agent models are kept
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "OLLAMA", cfg.LLM.Providers[0].Type)
	assert.Equal(t, []string{"qwen2.5:3b"}, cfg.LLM.AssistantModels["default"])

	// explicit command wins
	cfg.MCP.Command = "node server.js"
	args, err = cfg.CommandLine()
	require.NoError(t, err)
	assert.Equal(t, []string{"node", "server.js"}, args)
}

func TestLoad_Errors(t *testing.T) {
	tcases := []struct {
		file string
		err  string
	}{
		{"testdata/non-existent.yaml", "unable to load config"},
		{"testdata/invalid_command.yaml", "invalid mcp.command"},
		{"testdata/invalid_provider.yaml", "invalid config"},
	}
	for _, tc := range tcases {
		t.Run(tc.file, func(t *testing.T) {
			_, err := config.Load(tc.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Agent.MaxSteps = 100
	assert.ErrorContains(t, cfg.Validate(), "invalid config")
}
