package cmd

import (
	"github.com/effective-security/mcpagent/toolset"
	"github.com/spf13/cobra"
)

func discoverCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Connect to the configured tool host and print the toolset snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tc, err := a.Transport()
			if err != nil {
				return err
			}
			_, _, snap := toolset.Discover(cmd.Context(), tc)
			return a.Print(cmd.OutOrStdout(), snap)
		},
	}
}

func toolsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the builtin tools served by the tool host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.Registry()
			if err != nil {
				return err
			}
			return a.Print(cmd.OutOrStdout(), reg.Descriptors())
		},
	}
}
