package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/kiln/internal/assist"
	"github.com/kokistudios/kiln/internal/secret"
	"github.com/kokistudios/kiln/internal/store"
	"github.com/kokistudios/kiln/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, ui.ErrCancelled) || errors.Is(err, context.Canceled) {
			ui.SanitizeTerminal()
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor, verbose bool

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Kiln: reheat a habit until a new room emerges",
		Long: "A guided reflection tool. Each session walks one habit (a form of an anchor) through six phases, " +
			"from the enumerated bed to observation, and may end with a new named room in your room graph.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
			ui.SetVerbose(verbose)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "journal", Title: "Journal & Rooms:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	grouped := []struct {
		group string
		cmd   *cobra.Command
	}{
		{"core", initCmd()},
		{"core", doctorCmd()},
		{"session", sessionCmd()},
		{"session", anchorCmd()},
		{"session", assistCmd()},
		{"journal", journalCmd()},
		{"journal", roomCmd()},
		{"journal", exportCmd()},
		{"journal", importCmd()},
		{"config", configCmd()},
		{"config", keyCmd()},
		{"config", mcpCmd()},
	}
	for _, g := range grouped {
		g.cmd.GroupID = g.group
		rootCmd.AddCommand(g.cmd)
	}
	rootCmd.AddCommand(completionCmd())
	return rootCmd
}

func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("Kiln not initialized; run 'kiln init' first: %w", err)
	}
	return s, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize KILN_HOME",
		Long:    "Create the KILN_HOME directory (~/.kiln by default) with config.yaml and the kiln.db journal. Run this once before using any other Kiln command.",
		Example: "  kiln init\n  kiln init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			if err := store.Init(home, force); err != nil {
				return err
			}
			ui.LogoWithTagline("reheat a habit until a new room emerges")
			ui.Success("Kiln initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if KILN_HOME already exists")
	return cmd
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check health of the Kiln home and journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			home := store.Home()

			if fix {
				ui.CommandBanner("DOCTOR", "repair mode")
				fixed := store.FixIssues(home)
				if s, err := store.Load(home); err == nil {
					repaired, err := s.RepairIntegrity(ctx)
					s.Close()
					if err != nil {
						return err
					}
					fixed = append(fixed, repaired...)
				}
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.CommandBanner("DOCTOR", "health check")
			}

			issues := store.CheckHealth(home)
			if len(issues) == 0 {
				s, err := store.Load(home)
				if err != nil {
					return err
				}
				defer s.Close()
				integrity, err := s.CheckIntegrity(ctx)
				if err != nil {
					return err
				}
				issues = append(issues, integrity...)

				a, err := assist.FromStore(s)
				if err != nil {
					issues = append(issues, store.Issue{Severity: "warning", Message: err.Error()})
				} else if err := a.Available(); err != nil {
					issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("assistant (%s): %v", a.Backend(), err)})
				}
			}

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}
			if hasError {
				return fmt.Errorf("%d issue(s) found; run 'kiln doctor --fix'", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair the home layout, dangling room edges and orphaned room origins")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit Kiln configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configGetCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Aliases: []string{"list"},
		Short:   "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: store.ConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			v, err := s.ConfigValue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a Kiln configuration value. Valid keys: assist.provider, assist.model, assist.claude_path, assist.temperature, assist.max_tokens, assist.timeout, session.empty_heat_default, session.quick_start_count, journal.limit.",
		Example: `  kiln config set assist.provider claude
  kiln config set session.empty_heat_default 10m
  kiln config set journal.limit 20`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: store.ConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Gemini API key",
		Long:  "Store, inspect or remove the Gemini API key. The key lives in KILN_HOME/credentials.env (mode 0600); KILN_GEMINI_API_KEY overrides it.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (prompts when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 1 {
				value = args[0]
			} else {
				v, err := ui.PromptLine("Gemini API key", "paste key", "")
				if err != nil {
					return err
				}
				value = v
			}
			if value == "" {
				return fmt.Errorf("API key is empty")
			}
			secrets := secret.Open(store.Home())
			if err := secrets.Set(secret.GeminiAPIKey, value); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Saved API key %s", secret.Mask(value)))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets := secret.Open(store.Home())
			if err := secrets.Delete(secret.GeminiAPIKey); err != nil {
				return err
			}
			ui.Success("API key removed")
			if secrets.Source(secret.GeminiAPIKey) == "env" {
				ui.Warning(fmt.Sprintf("%s is still set in the environment", secrets.EnvName(secret.GeminiAPIKey)))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether an API key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets := secret.Open(store.Home())
			v, err := secrets.Get(secret.GeminiAPIKey)
			if errors.Is(err, secret.ErrNotFound) {
				ui.Warning("No API key configured. AI suggestions are unavailable; the reflection flow still works.")
				return nil
			}
			if err != nil {
				return err
			}
			ui.KeyValue("Key:   ", secret.Mask(v))
			ui.KeyValue("Source:", secrets.Source(secret.GeminiAPIKey))
			return nil
		},
	})
	return cmd
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  kiln completion bash > ~/.bashrc.d/kiln\n  kiln completion zsh > ~/.zfunc/_kiln\n  kiln completion fish > ~/.config/fish/completions/kiln.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}
