// Package config provides the configuration of the mcpagent command.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
	"github.com/kballard/go-shellquote"
)

// Defaults
const (
	DefaultTimeoutSeconds      = 15
	DefaultProtocolVersion     = "2024-11-05"
	DefaultMaxSteps            = 3
	DefaultMaxSpecialistRounds = 1
	DefaultHistoryLimit        = 20
	// ToolHostCommand is the sub command that serves the builtin tools
	ToolHostCommand = "toolhost"
)

// Config of the mcpagent command
type Config struct {
	// LogLevel specifies the level of the stderr logger:
	// TRACE|DEBUG|INFO|NOTICE|WARNING|ERROR
	LogLevel   string             `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	MCP        MCPConfig          `json:"mcp" yaml:"mcp"`
	Agent      AgentConfig        `json:"agent" yaml:"agent"`
	MultiAgent MultiAgentConfig   `json:"multi_agent" yaml:"multi_agent"`
	Tools      ToolsConfig        `json:"tools" yaml:"tools"`
	LLM        *llmfactory.Config `json:"llm,omitempty" yaml:"llm,omitempty"`
}

// MCPConfig describes the tool host
type MCPConfig struct {
	// Command is the tool host command line, empty disables MCP tools
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// UseBuiltinHost launches this executable as the tool host,
	// when Command is not set
	UseBuiltinHost  bool   `json:"use_builtin_host,omitempty" yaml:"use_builtin_host,omitempty"`
	TimeoutSeconds  int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"gte=0"`
	ProtocolVersion string `json:"protocol_version,omitempty" yaml:"protocol_version,omitempty"`
	ClientName      string `json:"client_name,omitempty" yaml:"client_name,omitempty"`
	ClientVersion   string `json:"client_version,omitempty" yaml:"client_version,omitempty"`
}

// AgentConfig of the single agent loop
type AgentConfig struct {
	MaxSteps               int  `json:"max_steps,omitempty" yaml:"max_steps,omitempty" validate:"gte=0,lte=50"`
	BreakRepeatedToolCalls bool `json:"break_repeated_tool_calls,omitempty" yaml:"break_repeated_tool_calls,omitempty"`
	// LocalTools serves the builtin tools in process,
	// in addition to the tools of the host
	LocalTools bool `json:"local_tools,omitempty" yaml:"local_tools,omitempty"`
	// Temperature and MaxTokens are passed to the model when set
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	// HistoryLimit is the number of messages kept between interactive turns
	HistoryLimit int `json:"history_limit,omitempty" yaml:"history_limit,omitempty" validate:"gte=0"`
}

// MultiAgentConfig of the pipeline
type MultiAgentConfig struct {
	MaxSpecialistRounds int `json:"max_specialist_rounds,omitempty" yaml:"max_specialist_rounds,omitempty" validate:"gte=0,lte=10"`
}

// ToolsConfig of the builtin tools
type ToolsConfig struct {
	// TavilyAPIKey enables the web_search tool
	TavilyAPIKey  string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
	TavilyBaseURL string `json:"tavily_base_url,omitempty" yaml:"tavily_base_url,omitempty"`
}

// Load returns the config from file with defaults applied,
// empty file returns the default config
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "unable to load config: %s", file)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults sets the default values for empty fields
func (c *Config) SetDefaults() {
	if c.MCP.TimeoutSeconds == 0 {
		c.MCP.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MCP.ProtocolVersion == "" {
		c.MCP.ProtocolVersion = DefaultProtocolVersion
	}
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = DefaultMaxSteps
	}
	if c.Agent.HistoryLimit == 0 {
		c.Agent.HistoryLimit = DefaultHistoryLimit
	}
	if c.MultiAgent.MaxSpecialistRounds == 0 {
		c.MultiAgent.MaxSpecialistRounds = DefaultMaxSpecialistRounds
	}
	if c.LLM == nil || len(c.LLM.Providers) == 0 {
		def := llmfactory.DefaultConfig()
		if c.LLM != nil {
			def.AssistantModels = c.LLM.AssistantModels
		}
		c.LLM = def
	}
}

// Validate returns an error if the config is invalid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	if _, err := c.CommandLine(); err != nil {
		return err
	}
	return nil
}

// CommandLine returns the tool host command split into arguments,
// nil is returned when MCP is not configured
func (c *Config) CommandLine() ([]string, error) {
	command := strings.TrimSpace(c.MCP.Command)
	if command == "" {
		if !c.MCP.UseBuiltinHost {
			return nil, nil
		}
		self, err := Executable()
		if err != nil {
			return nil, errors.WithMessage(err, "unable to locate executable")
		}
		return []string{self, ToolHostCommand}, nil
	}

	args, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid mcp.command: %s", command)
	}
	return args, nil
}

// Executable returns the path of the running binary
var Executable = os.Executable

// Transport returns the config of the stdio client
func (c *Config) Transport() (stdiotransport.Config, error) {
	args, err := c.CommandLine()
	if err != nil {
		return stdiotransport.Config{}, err
	}

	info := stdiotransport.DefaultClientInfo
	if c.MCP.ClientName != "" {
		info.Name = c.MCP.ClientName
	}
	if c.MCP.ClientVersion != "" {
		info.Version = c.MCP.ClientVersion
	}

	return stdiotransport.Config{
		Command:         args,
		Timeout:         time.Duration(c.MCP.TimeoutSeconds) * time.Second,
		ProtocolVersion: c.MCP.ProtocolVersion,
		ClientInfo:      info,
	}, nil
}
