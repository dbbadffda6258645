// ABOUTME: Entry point for persona-studio
// ABOUTME: Cobra commands to serve the HTTP API, chat in the terminal, and inspect personas

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/persona-studio/internal/config"
	"github.com/2389/persona-studio/internal/persona"
)

// version is set at build time.
var version = "dev"

// globalOptions carries flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "persona-studio",
		Short: "Create conversational agent personas and chat with them",
		Long: `persona-studio manages conversational agents built on canned personas.

Each agent has a greeting and a conversation. Messages get scripted replies
chosen by keyword after a short simulated delay. State lives in process
memory only and is lost on exit.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newPersonasCmd(),
		newHealthCmd(opts),
	)
	return root
}

// loadConfig resolves and loads the config file, falling back to defaults
// when none exists. Returns the path used ("" for defaults).
func loadConfig(opts *globalOptions) (*config.Config, string, error) {
	path := config.ResolvePath(opts.configPath)

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
	}
	return cfg, path, nil
}

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the built-in personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cyan := color.New(color.FgCyan)
			gray := color.New(color.FgHiBlack)

			for _, p := range persona.Builtin().List() {
				fmt.Fprintf(out, "%s %s ", p.Avatar, cyan.Sprint(p.Name))
				fmt.Fprintln(out, gray.Sprintf("(%s)", p.ID))
				fmt.Fprintf(out, "    %s\n", p.Description)
				fmt.Fprintf(out, "    %q\n\n", p.Greeting)
			}
			return nil
		},
	}
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check a running server's health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("creating request: %w", err)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
			}

			color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "healthy (%s)\n", cfg.Server.HTTPAddr)
			return nil
		},
	}
}
