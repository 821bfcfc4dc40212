package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/store"
	"github.com/kokistudios/kiln/internal/ui"
)

func roomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "room",
		Aliases: []string{"rooms"},
		Short:   "Browse rooms and the adjacency between them",
		Long:    "Rooms are the new forms named at the end of a session. Adjacency is symmetric: linking A to B also links B to A.",
	}
	cmd.AddCommand(roomListCmd())
	cmd.AddCommand(roomShowCmd())
	cmd.AddCommand(roomLinkCmd())
	cmd.AddCommand(roomUnlinkCmd())
	cmd.AddCommand(roomRenameCmd())
	cmd.AddCommand(roomDeleteCmd())
	cmd.AddCommand(roomGraphCmd())
	return cmd
}

// loadGraph opens the store and reads the whole room graph.
func loadGraph(ctx context.Context) (*store.Store, *room.Graph, error) {
	s, err := loadStore()
	if err != nil {
		return nil, nil, err
	}
	g, err := room.LoadGraph(ctx, s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, g, nil
}

func roomListCmd() *cobra.Command {
	var anchorName string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rooms, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, g, err := loadGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			var rows [][]string
			for _, r := range g.Rooms() {
				if anchorName != "" && r.AnchorName != anchorName {
					continue
				}
				rows = append(rows, []string{
					shortID(r.ID),
					r.Name,
					r.AnchorName,
					fmt.Sprintf("%d", g.Degree(r.ID)),
					r.CreatedAt.Local().Format("2006-01-02"),
				})
			}
			if len(rows) == 0 {
				ui.EmptyState("No rooms yet. Name one when you finalize a session.")
				return nil
			}
			ui.Table([]string{"ID", "ROOM", "ANCHOR", "ADJACENT", "CREATED"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&anchorName, "anchor", "", "Only rooms from this anchor")
	return cmd
}

func roomShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <room>",
		Short: "Show a room and its neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, g, err := loadGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := g.Find(args[0])
			if err != nil {
				return err
			}
			ui.SectionHeader(r.Name)
			ui.KeyValue("ID", r.ID)
			ui.KeyValue("Spirit", r.Spirit)
			ui.KeyValue("Anchor", r.AnchorName)
			ui.KeyValue("Form", r.StartingForm)
			ui.KeyValue("Created", r.CreatedAt.Local().Format("2006-01-02 15:04"))
			if origin := r.Origin(); origin != "" {
				ui.KeyValue("Session", origin)
			} else {
				ui.KeyValue("Session", ui.Dim("(deleted)"))
			}
			neighbors := g.Neighbors(r.ID)
			if len(neighbors) == 0 {
				ui.EmptyState("No adjacent rooms.")
				return nil
			}
			ui.SectionHeader("Adjacent")
			for _, n := range neighbors {
				ui.Detail(n.Name, n.Spirit)
			}
			return nil
		},
	}
}

func roomLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <room> [other]",
		Short: "Make two rooms adjacent",
		Long:  "Link two rooms. With one room, pick any number of unlinked rooms from a list.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, g, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			a, err := g.Find(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return pickLinks(ctx, s, a)
			}
			b, err := g.Find(args[1])
			if err != nil {
				return err
			}
			if g.IsAdjacent(a.ID, b.ID) {
				ui.Info(fmt.Sprintf("%s and %s are already adjacent.", a.Name, b.Name))
				return nil
			}
			if err := room.Link(ctx, s, a.ID, b.ID); err != nil {
				if errors.Is(err, room.ErrSelfAdjacency) {
					return fmt.Errorf("%s: %w", a.Name, err)
				}
				return err
			}
			ui.Success(fmt.Sprintf("%s <--> %s", a.Name, b.Name))
			return nil
		},
	}
}

func roomUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <room> <other>",
		Short: "Remove the adjacency between two rooms",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, g, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			a, err := g.Find(args[0])
			if err != nil {
				return err
			}
			b, err := g.Find(args[1])
			if err != nil {
				return err
			}
			if !g.IsAdjacent(a.ID, b.ID) {
				ui.Info(fmt.Sprintf("%s and %s were not adjacent.", a.Name, b.Name))
				return nil
			}
			if err := room.Unlink(ctx, s, a.ID, b.ID); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Unlinked %s and %s", a.Name, b.Name))
			return nil
		},
	}
}

func roomRenameCmd() *cobra.Command {
	var spirit string
	cmd := &cobra.Command{
		Use:   "rename <room> <new name>",
		Short: "Rename a room or change its spirit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, g, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := g.Find(args[0])
			if err != nil {
				return err
			}
			r.Name = args[1]
			if cmd.Flags().Changed("spirit") {
				r.Spirit = spirit
			}
			if err := room.Save(ctx, s, r); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Room is now %q", r.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&spirit, "spirit", "", "New spirit")
	return cmd
}

func roomDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <room>",
		Aliases: []string{"rm"},
		Short:   "Delete a room and every adjacency it had",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, g, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := g.Find(args[0])
			if err != nil {
				return err
			}
			if !yes {
				msg := fmt.Sprintf("Delete room %q", r.Name)
				if d := g.Degree(r.ID); d > 0 {
					msg += fmt.Sprintf(" and its %d link(s)", d)
				}
				ok, err := ui.Confirm(msg + "?")
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := room.Delete(ctx, s, r.ID); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Deleted room %q", r.Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

func roomGraphCmd() *cobra.Command {
	var depth int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "graph <room>",
		Short: "Walk the rooms around a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, g, err := loadGraph(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := g.Find(args[0])
			if err != nil {
				return err
			}
			w, err := room.Walk(g, r.ID, depth)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(w)
			}
			fmt.Fprint(cmd.OutOrStdout(), w.ASCII)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "How many hops to follow")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the walk as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
