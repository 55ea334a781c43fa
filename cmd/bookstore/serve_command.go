package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/runtime"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := runtime.NewApplication(runCtx, cfg)
			if err != nil {
				return err
			}
			runErr := application.Run(runCtx)
			// The run context is already cancelled here.
			shutdownErr := application.Shutdown(context.Background())
			if runErr != nil {
				return runErr
			}
			return shutdownErr
		},
	}
}
