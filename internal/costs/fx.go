package costs

import (
	"github.com/wescmx/aws/internal/config"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/wescmx/aws/internal/costs/domain"
	"github.com/wescmx/aws/internal/costs/repository"
	"github.com/wescmx/aws/internal/costs/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("costs",
	fx.Provide(
		repository.Provide,
		func(f *costexplorer.Fetcher) service.BillingFetcher { return f },
		func(db *gorm.DB, repo domain.Repository, fetcher service.BillingFetcher, cfg config.Config, log *zap.Logger) *service.Runner {
			return service.NewRunner(db, repo, fetcher, domain.ConflictPolicy(cfg.ConflictPolicy), cfg.IngestWorkers, log)
		},
	),
)
