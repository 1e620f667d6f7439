// Package cli implements blogctl, the operator command line for the blog
// pipeline.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/braincargo/brainblog/internal/app"
	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/logger"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "blogctl",
		Short:         "Generate, publish and maintain BrainCargo blog posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env := os.Getenv("ENV")
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				env = "development"
			} else if env == "" {
				env = "production"
			}
			slog.SetDefault(logger.NewWithWriter(env, cmd.ErrOrStderr()))
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewBatchCmd())
	rootCmd.AddCommand(NewIndexCmd())
	rootCmd.AddCommand(NewKnowledgeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadDeps reads the process config and connects its backends.
func loadDeps(ctx context.Context) (*app.Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.Build(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
