package export

import (
	"github.com/wescmx/aws/internal/costexplorer"
	"go.uber.org/fx"
)

var Module = fx.Module("export",
	fx.Provide(
		func(f *costexplorer.Fetcher) BillingFetcher { return f },
		NewExporter,
	),
)
