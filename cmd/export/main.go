package main

import (
	"context"

	"github.com/wescmx/aws/internal/clock"
	"github.com/wescmx/aws/internal/config"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/wescmx/aws/internal/export"
	"github.com/wescmx/aws/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		clock.Module,

		// Functional domains
		costexplorer.Module,
		export.Module,

		fx.Invoke(runExport),
	)
	app.Run()
}

// runExport writes one workbook and shuts the app down.
func runExport(lc fx.Lifecycle, sh fx.Shutdowner, exporter *export.Exporter, cfg config.Config, window costexplorer.Window, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				if err := exporter.Run(context.Background(), cfg.Accounts, window, cfg.ExportFile); err != nil {
					log.Error("export failed", zap.Error(err))
					code = 1
				}
				if err := sh.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
	})
}
