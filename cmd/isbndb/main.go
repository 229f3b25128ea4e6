// Command isbndb is an operator CLI over the local book cache and the
// ISBNdb lookup queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/di"
)

var (
	envFile  string
	dataPath string
	logLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "isbndb",
		Short:         "Look up and cache book metadata from ISBNdb",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().StringVar(&dataPath, "data-path", "", "base path for database, cache and index")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(bookCommand(), searchCommand(), warmCommand(), statsCommand())
	return root
}

// withContainer loads configuration, builds the container, runs fn and
// shuts everything down.
func withContainer(fn func(injector do.Injector) error) error {
	args := []string{"-env-file", envFile, "-log-level", logLevel}
	if dataPath != "" {
		args = append(args, "-data-path", dataPath)
	}

	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	injector := di.NewContainer(cfg, os.Stderr)
	defer func() { _ = injector.Shutdown() }()

	return fn(injector)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
