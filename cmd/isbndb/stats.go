package main

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/service"
)

type cacheReport struct {
	domain.CacheStats
	CachedResponses int `json:"cached_responses"`
}

func statsCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(i do.Injector) error {
				ctx := cmd.Context()
				catalog := do.MustInvoke[*service.CatalogService](i)

				if purge {
					if err := catalog.PurgeCache(ctx); err != nil {
						return err
					}
				}

				stats, err := do.MustInvoke[*service.BookCacheService](i).GetCacheStats(ctx)
				if err != nil {
					return err
				}
				responses, err := catalog.CachedResponses(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), cacheReport{CacheStats: *stats, CachedResponses: responses})
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge-responses", false, "drop cached search responses first")

	return cmd
}
