package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/gemini-planner/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var noUpdateCheck bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireModel(); err != nil {
				return err
			}
			logger := a.logger(cmd, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, cleanup, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			if !noUpdateCheck {
				checker := a.newChecker(cfg.Updater.Repo, logger)
				go func() {
					checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
					defer cancel()
					checker.Notify(checkCtx, server.Version)
				}()
			}

			return server.Serve(s)
		},
	}
	cmd.Flags().String("model", "", "Gemini model name (overrides GEMINI_MODEL)")
	cmd.Flags().String("storage", "", "directory holding planning contexts")
	cmd.Flags().String("driver", "", "storage driver: file or sqlite")
	cmd.Flags().BoolVar(&noUpdateCheck, "no-update-check", false, "skip the background release check")
	return cmd
}
