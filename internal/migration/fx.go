package migration

import (
	"github.com/wescmx/aws/internal/config"
	"github.com/wescmx/aws/internal/costs/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// SQL migrations target postgres; the sqlite path exists for
		// local runs and derives the same schema from the models.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&domain.Account{},
				&domain.Service{},
				&domain.Month{},
				&domain.Year{},
				&domain.CostFact{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
