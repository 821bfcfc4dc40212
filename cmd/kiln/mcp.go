package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/assist"
	"github.com/kokistudios/kiln/internal/mcp"
	"github.com/kokistudios/kiln/internal/ui"
)

const mcpServerName = "kiln"

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the journal and room graph to agents over MCP",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			// stdout belongs to the protocol from here on.
			ui.Logger.SetOutput(os.Stderr)
			ui.Logger.Debug("mcp server starting", "home", s.Home)
			return mcp.NewServer(s, buildVersion()).Run(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Register kiln as an MCP server in the claude CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			bin, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot locate kiln binary: %w", err)
			}
			if resolved, err := filepath.EvalSymlinks(bin); err == nil {
				bin = resolved
			}
			c := &assist.Claude{Path: s.Config.Assist.ClaudePath}
			if err := c.ConfigureMCP(bin, mcpServerName); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Registered MCP server %q -> %s mcp serve", mcpServerName, bin))
			return nil
		},
	})
	return cmd
}
