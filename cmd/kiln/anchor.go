package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kokistudios/kiln/internal/anchor"
	"github.com/kokistudios/kiln/internal/ui"
)

func anchorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "anchor",
		Aliases: []string{"anchors"},
		Short:   "Browse the anchor catalog and manage custom anchors",
	}
	cmd.AddCommand(anchorListCmd())
	cmd.AddCommand(anchorShowCmd())
	cmd.AddCommand(anchorAddCmd())
	cmd.AddCommand(anchorEditCmd())
	cmd.AddCommand(anchorRemoveCmd())
	return cmd
}

func anchorListCmd() *cobra.Command {
	var customOnly bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List built-in and custom anchors",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			catalog, err := anchor.Catalog(cmd.Context(), s)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, a := range catalog {
				if customOnly && !a.Custom {
					continue
				}
				kind := "built-in"
				if a.Custom {
					kind = "custom"
				}
				rows = append(rows, []string{a.Name, kind, fmt.Sprintf("%d", len(a.TentativeForms)), a.Description})
			}
			if len(rows) == 0 {
				ui.EmptyState("No custom anchors. Add one with 'kiln anchor add'.")
				return nil
			}
			ui.Table([]string{"ANCHOR", "KIND", "FORMS", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&customOnly, "custom", false, "Only custom anchors")
	return cmd
}

func anchorShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <anchor>",
		Short: "Show an anchor and its tentative forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			a, err := anchor.Resolve(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			ui.SectionHeader(a.Name)
			ui.KeyValue("ID", a.ID)
			ui.KeyValue("Description", a.Description)
			if len(a.TentativeForms) == 0 {
				ui.EmptyState("No forms yet.")
				return nil
			}
			var rows [][]string
			for _, f := range a.TentativeForms {
				rows = append(rows, []string{f.Context, f.FormName})
			}
			ui.Table([]string{"CONTEXT", "FORM"}, rows)
			return nil
		},
	}
}

func anchorAddCmd() *cobra.Command {
	var description string
	var forms []string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a custom anchor",
		Example: `  kiln anchor add "Quiet Competence" -d "Being good at something unseen" \
      --form "Kitchen:The Perfect Omelette" --form "Office:The Clean Inbox"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseForms(forms)
			if err != nil {
				return err
			}
			c, err := anchor.NewCustom(args[0], description, parsed)
			if err != nil {
				return err
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if _, err := anchor.Resolve(cmd.Context(), s, c.Name); err == nil {
				return fmt.Errorf("an anchor named %q already exists", c.Name)
			}
			if err := anchor.SaveCustom(cmd.Context(), s, c); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Added anchor %q with %d form(s)", c.Name, len(c.Forms)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "What desire this anchor names")
	cmd.Flags().StringArrayVarP(&forms, "form", "f", nil, "A form as 'context:form name' (repeatable)")
	return cmd
}

func anchorEditCmd() *cobra.Command {
	var name, description string
	var addForms, removeForms []string
	cmd := &cobra.Command{
		Use:   "edit <anchor>",
		Short: "Rename a custom anchor or change its forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			c, err := anchor.FindCustom(ctx, s, args[0])
			if err != nil {
				if _, ok := anchor.Lookup(args[0]); ok {
					return fmt.Errorf("%q is a built-in anchor and cannot be edited", args[0])
				}
				return err
			}
			if cmd.Flags().Changed("name") {
				c.Name = strings.TrimSpace(name)
			}
			if cmd.Flags().Changed("description") {
				c.Description = description
			}
			for _, rm := range removeForms {
				kept := c.Forms[:0]
				for _, f := range c.Forms {
					if !strings.EqualFold(f.FormName, strings.TrimSpace(rm)) {
						kept = append(kept, f)
					}
				}
				c.Forms = kept
			}
			added, err := parseForms(addForms)
			if err != nil {
				return err
			}
			c.Forms = append(c.Forms, added...)
			if err := anchor.SaveCustom(ctx, s, c); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Updated anchor %q", c.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringArrayVar(&addForms, "add-form", nil, "Add a form as 'context:form name' (repeatable)")
	cmd.Flags().StringArrayVar(&removeForms, "remove-form", nil, "Remove the form with this name (repeatable)")
	return cmd
}

func anchorRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <anchor>",
		Aliases: []string{"delete"},
		Short:   "Delete a custom anchor",
		Long:    "Delete a custom anchor. Sessions that used it keep the anchor name.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			c, err := anchor.FindCustom(ctx, s, args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := ui.Confirm(fmt.Sprintf("Delete anchor %q?", c.Name))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := anchor.DeleteCustom(ctx, s, c.ID); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Deleted anchor %q", c.Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

// parseForms reads "context:form name" pairs. A value without a colon is a
// form with no context.
func parseForms(values []string) ([]anchor.TentativeForm, error) {
	var out []anchor.TentativeForm
	for _, v := range values {
		ctxName, form, found := strings.Cut(v, ":")
		if !found {
			ctxName, form = "", v
		}
		form = strings.TrimSpace(form)
		if form == "" {
			return nil, fmt.Errorf("form %q has no name", v)
		}
		out = append(out, anchor.TentativeForm{Context: strings.TrimSpace(ctxName), FormName: form})
	}
	return out, nil
}
