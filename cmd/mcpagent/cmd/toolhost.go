package cmd

import (
	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/config"
	"github.com/effective-security/mcpagent/mcp/server"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func toolhostCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   config.ToolHostCommand,
		Short: "Serve the builtin tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.Registry()
			if err != nil {
				return err
			}
			reg.WithCallback(callbacks.NewPackageLogger(logger))

			logger.KV(xlog.INFO,
				"status", "toolhost",
				"tools", reg.Names(),
			)

			srv := server.New(reg, server.WithProtocolVersion(a.Config().MCP.ProtocolVersion))
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
