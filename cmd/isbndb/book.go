package main

import (
	"errors"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf-server/internal/service"
)

func bookCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "book <isbn>",
		Short: "Show a book, fetching and caching it on a miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(i do.Injector) error {
				books := do.MustInvoke[*service.BookCacheService](i)

				book, err := books.GetBookByISBN(cmd.Context(), args[0], refresh)
				if err != nil {
					return err
				}
				if book == nil {
					return errors.New("book not found")
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and fetch from ISBNdb")

	return cmd
}
