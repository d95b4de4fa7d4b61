package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/wescmx/aws/internal/clock"
	"github.com/wescmx/aws/internal/config"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/wescmx/aws/internal/costs"
	"github.com/wescmx/aws/internal/costs/service"
	"github.com/wescmx/aws/internal/migration"
	"github.com/wescmx/aws/internal/observability"
	"github.com/wescmx/aws/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional domains
		migration.Module,
		costexplorer.Module,
		costs.Module,

		fx.Invoke(runIngest),
	)
	app.Run()
}

// runIngest executes one ingestion batch and shuts the app down. A batch
// with partial failures still exits 0; only a fully failed batch is an
// error exit.
func runIngest(lc fx.Lifecycle, sh fx.Shutdowner, runner *service.Runner, cfg config.Config, window costexplorer.Window, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				result := runner.RunAll(context.Background(), cfg.Accounts, window)

				code := 0
				if len(result.Succeeded) == 0 {
					log.Error("every account failed", zap.Strings("accounts", result.Failed))
					code = 1
				} else if len(result.Failed) > 0 {
					log.Warn("batch finished with failures", zap.Strings("failed", result.Failed))
				}
				if err := sh.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
