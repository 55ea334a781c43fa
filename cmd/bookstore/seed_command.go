package main

import (
	"github.com/spf13/cobra"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/runtime"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/seed"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/httputil"
)

const seedLong = `Without --url the configured database is seeded directly. With --url the
running server is asked to reseed itself; --token must be an admin token.`

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var remote remoteFlags
	cmd := &cobra.Command{
		Use:         "seed",
		Short:       "Reset the database and load the demo catalog",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Long:        seedLong,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				stats seed.Stats
				err   error
			)
			if remote.url != "" {
				stats, err = seedRemote(cmd, remote)
			} else {
				stats, err = seedLocal(cmd, ctx)
			}
			if err != nil {
				return err
			}
			printer(cmd).Success("seeded %d authors, %d categories, %d books, %d users",
				stats.Authors, stats.Categories, stats.Books, stats.Users)
			return nil
		},
	}
	remote.register(cmd)
	return cmd
}

func seedLocal(cmd *cobra.Command, ctx *commandContext) (seed.Stats, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return seed.Stats{}, err
	}
	if cfg.Database.Driver == config.DriverMemory {
		printer(cmd).Warning("memory driver: seeded data is discarded when this command exits")
	}
	application, err := runtime.NewApplication(cmd.Context(), cfg)
	if err != nil {
		return seed.Stats{}, err
	}
	defer func() { _ = application.Shutdown(cmd.Context()) }()
	return application.App().Seeder.Run(cmd.Context())
}

func seedRemote(cmd *cobra.Command, remote remoteFlags) (seed.Stats, error) {
	resp, err := remote.client().Post(cmd.Context(), "/api/admin/seed", nil)
	if err != nil {
		return seed.Stats{}, err
	}
	var stats seed.Stats
	err = httputil.DecodeResponse(resp, &stats)
	return stats, err
}
