package costexplorer

import (
	"github.com/wescmx/aws/internal/clock"
	"github.com/wescmx/aws/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("costexplorer",
	fx.Provide(
		func(cfg config.Config) APIFactory { return NewAPIFactory(cfg.AWSRegion) },
		NewFetcher,
		func(cfg config.Config, c clock.Clock) (Window, error) {
			return ResolveWindow(cfg.ReportStart, cfg.ReportEnd, c)
		},
	),
)
