package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openshelf/openshelf-server/internal/di/providers"
	"github.com/openshelf/openshelf-server/internal/lookup"
)

type warmOutcome struct {
	isbn   string
	status string
	title  string
}

func warmCommand() *cobra.Command {
	var high bool

	cmd := &cobra.Command{
		Use:   "warm <isbn>...",
		Short: "Queue lookups for many ISBNs and wait for them to be cached",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority := lookup.PriorityLow
			if high {
				priority = lookup.PriorityHigh
			}

			return withContainer(func(i do.Injector) error {
				queue := do.MustInvoke[*providers.LookupQueueHandle](i)

				outcomes := make([]warmOutcome, len(args))
				g, ctx := errgroup.WithContext(cmd.Context())

				for idx, isbn := range args {
					outcomes[idx] = warmOutcome{isbn: isbn}

					future, err := queue.QueueBookLookup(isbn, priority)
					if err != nil {
						outcomes[idx].status = err.Error()
						continue
					}

					g.Go(func() error {
						book, err := future.Wait(ctx)
						switch {
						case err != nil && ctx.Err() != nil:
							return err
						case err != nil:
							outcomes[idx].status = err.Error()
						case book == nil:
							outcomes[idx].status = "not found"
						default:
							outcomes[idx].status = "cached"
							outcomes[idx].title = book.Title
						}
						return nil
					})
				}

				if err := g.Wait(); err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, o := range outcomes {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", o.isbn, o.status, o.title)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&high, "high", false, "queue at high priority")

	return cmd
}
