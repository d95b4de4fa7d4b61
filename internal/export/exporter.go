package export

import (
	"context"
	"fmt"

	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// BillingFetcher is the slice of the cost explorer client the exporter needs.
type BillingFetcher interface {
	Fetch(ctx context.Context, account string, window costexplorer.Window) (*sdk.GetCostAndUsageOutput, error)
}

// Exporter writes per-account spend reports into a single workbook.
type Exporter struct {
	fetcher BillingFetcher
	log     *zap.Logger
}

func NewExporter(fetcher BillingFetcher, log *zap.Logger) *Exporter {
	return &Exporter{fetcher: fetcher, log: log.Named("export")}
}

// Run fetches every account's costs for the window and saves the workbook
// to path. An account whose fetch or pivot fails is skipped with a log
// line; the run only errors when no sheet could be produced at all.
func (e *Exporter) Run(ctx context.Context, accounts []string, window costexplorer.Window, path string) error {
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	f := excelize.NewFile()
	defer f.Close()

	written := 0
	for _, account := range accounts {
		log := e.log.With(zap.String("account", account))

		out, err := e.fetcher.Fetch(ctx, account, window)
		if err != nil {
			log.Error("billing fetch failed, skipping sheet", zap.Error(err))
			continue
		}
		s, err := pivot(out)
		if err != nil {
			log.Error("response pivot failed, skipping sheet", zap.Error(err))
			continue
		}

		name := sheetName(account)
		if written == 0 {
			// Reuse the default sheet excelize creates with the file.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeSheet(f, name, s); err != nil {
			return fmt.Errorf("write sheet for account %q: %w", account, err)
		}

		written++
		log.Info("sheet written",
			zap.Int("months", len(s.Months)),
			zap.Int("services", len(s.Rows)),
		)
	}

	if written == 0 {
		return fmt.Errorf("no account produced a sheet")
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	e.log.Info("workbook saved",
		zap.String("path", path),
		zap.Int("sheets", written),
	)
	return nil
}
