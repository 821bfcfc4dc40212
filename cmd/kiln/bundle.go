package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/bundle"
	"github.com/kokistudios/kiln/internal/ui"
)

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions, rooms and custom anchors to a .kiln bundle",
		Example: `  kiln export
  kiln export -o ~/backups/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			path, m, err := bundle.Export(cmd.Context(), s, output)
			if err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Exported to %s", path))
			ui.Detail("Sessions", fmt.Sprintf("%d", m.Sessions))
			ui.Detail("Rooms", fmt.Sprintf("%d (%d links)", m.Rooms, m.Edges))
			ui.Detail("Custom anchors", fmt.Sprintf("%d", m.Anchors))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output file or directory")
	return cmd
}

func importCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <bundle.kiln>",
		Short: "Import a .kiln bundle",
		Long:  "Import a bundle. Sessions, rooms and anchors whose IDs already exist are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				m, err := bundle.ReadManifest(args[0])
				if err != nil {
					return err
				}
				ui.KeyValue("Format", m.Version)
				ui.KeyValue("Exported", m.ExportedAt.Local().Format("2006-01-02 15:04"))
				ui.KeyValue("Sessions", fmt.Sprintf("%d", m.Sessions))
				ui.KeyValue("Rooms", fmt.Sprintf("%d (%d links)", m.Rooms, m.Edges))
				ui.KeyValue("Custom anchors", fmt.Sprintf("%d", m.Anchors))
				return nil
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			res, err := bundle.Import(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Imported %s", args[0]))
			ui.Detail("Sessions", fmt.Sprintf("%d added, %d skipped", res.SessionsAdded, res.SessionsSkipped))
			ui.Detail("Rooms", fmt.Sprintf("%d added, %d skipped, %d links", res.RoomsAdded, res.RoomsSkipped, res.EdgesAdded))
			ui.Detail("Custom anchors", fmt.Sprintf("%d added, %d skipped", res.AnchorsAdded, res.AnchorsSkipped))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show the bundle's manifest")
	return cmd
}
