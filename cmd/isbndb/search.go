package main

import (
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf-server/internal/isbndb"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/service"
)

func searchCommand() *cobra.Command {
	var (
		local    bool
		column   string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ISBNdb, or the local cache with --local",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			return withContainer(func(i do.Injector) error {
				if local {
					res, err := do.MustInvoke[*service.SearchService](i).SearchLocal(cmd.Context(), search.SearchParams{
						Query: query,
						Limit: pageSize,
					})
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}

				res, err := do.MustInvoke[*service.CatalogService](i).SearchBooks(cmd.Context(), query, isbndb.SearchBooksOptions{
					PageOptions: isbndb.PageOptions{Page: page, PageSize: pageSize},
					Column:      column,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "search cached books instead of ISBNdb")
	cmd.Flags().StringVar(&column, "column", "", "restrict to title, author, date_published or subjects")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "results per page")

	return cmd
}
