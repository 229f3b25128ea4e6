// Package providers contains dependency injection providers for the OpenShelf server.
package providers

import (
	"io"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
)

// LogOutput is where the logger writes. The server logs to stdout, the CLI
// to stderr so command output stays clean.
type LogOutput struct {
	io.Writer
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	out := do.MustInvoke[LogOutput](i)

	log := logger.New(logger.Config{
		Writer:      out.Writer,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"isbndb_enabled", cfg.HasISBNdbKey(),
	)

	return log, nil
}
