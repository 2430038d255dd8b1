// Package cmd provides the mcpagent command tree.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/config"
	"github.com/effective-security/mcpagent/encoding"
	"github.com/effective-security/mcpagent/mcp/transport/stdiotransport"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/mcpagent/tools/builtin"
	"github.com/effective-security/mcpagent/tools/tavily"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "cmd")

// EnvConfig is the environment variable with the config file location,
// used when --config is not provided
const EnvConfig = "MCPAGENT_CONFIG"

var logLevels = map[string]xlog.LogLevel{
	"ERROR":   xlog.ERROR,
	"WARNING": xlog.WARNING,
	"INFO":    xlog.INFO,
	"DEBUG":   xlog.DEBUG,
	"TRACE":   xlog.TRACE,
}

// App holds the flags and the loaded config of a command
type App struct {
	ConfigFile string
	Output     string
	LogLevel   string
	Verbose    bool

	cfg  *config.Config
	mode encoding.Mode
}

// RootCmd returns the root command with all sub commands registered
func RootCmd() *cobra.Command {
	a := &App{}
	cmd := &cobra.Command{
		Use:           "mcpagent",
		Short:         "mcpagent runs LLM agents with tools served over MCP",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.ConfigFile, "config", "c", os.Getenv(EnvConfig), "location of the config file")
	flags.StringVarP(&a.Output, "output", "o", encoding.ModeJSON, "output format: json|yaml")
	flags.StringVar(&a.LogLevel, "log-level", "", "log level: ERROR|WARNING|INFO|DEBUG|TRACE")
	flags.BoolVarP(&a.Verbose, "verbose", "v", false, "print agent events to stderr")

	cmd.AddCommand(
		toolhostCmd(a),
		discoverCmd(a),
		toolsCmd(a),
		chatCmd(a),
		multiCmd(a),
	)
	return cmd
}

func (a *App) init(stderr io.Writer) error {
	mode, err := encoding.ParseMode(strings.ToLower(a.Output))
	if err != nil {
		return err
	}
	a.mode = mode

	cfg, err := config.Load(a.ConfigFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	xlog.SetFormatter(xlog.NewStringFormatter(stderr))
	level := strings.ToUpper(values.StringsCoalesce(a.LogLevel, cfg.LogLevel, "ERROR"))
	lvl, ok := logLevels[level]
	if !ok {
		return errors.Newf("invalid log level: %s", level)
	}
	xlog.SetGlobalLogLevel(lvl)
	return nil
}

// Config returns the loaded config
func (a *App) Config() *config.Config {
	return a.cfg
}

// Transport returns the config of the tool host client.
// The builtin host is given the location of the config file.
func (a *App) Transport() (stdiotransport.Config, error) {
	tc, err := a.cfg.Transport()
	if err != nil {
		return tc, err
	}
	if strings.TrimSpace(a.cfg.MCP.Command) == "" && a.cfg.MCP.UseBuiltinHost && a.ConfigFile != "" {
		location, err := filepath.Abs(a.ConfigFile)
		if err != nil {
			return tc, errors.WithStack(err)
		}
		tc.Env = append(tc.Env, EnvConfig+"="+location)
	}
	return tc, nil
}

// Registry returns the builtin tools,
// web_search is added when the Tavily key is configured
func (a *App) Registry() (*tools.Registry, error) {
	var extra []tools.ITool
	if key := a.cfg.Tools.TavilyAPIKey; key != "" {
		t, err := tavily.New(key)
		if err != nil {
			return nil, err
		}
		if a.cfg.Tools.TavilyBaseURL != "" {
			t = t.WithBaseURL(a.cfg.Tools.TavilyBaseURL)
		}
		extra = append(extra, t)
	}
	return builtin.NewRegistry(extra...)
}

// Print writes the value in the output format,
// YAML is produced from the JSON form of the value
func (a *App) Print(w io.Writer, v any) error {
	var (
		b   []byte
		err error
	)
	if a.mode == encoding.ModeYAML {
		b, err = yaml.Marshal(v)
	} else {
		b, err = json.MarshalIndent(v, "", "\t")
	}
	if err != nil {
		return errors.WithMessage(err, "unable to encode output")
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(b), "\n"))
	return errors.WithStack(err)
}
