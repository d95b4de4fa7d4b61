// Package export renders raw Cost Explorer responses into an xlsx
// workbook, one sheet per account, without touching the database.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const unblendedCostMetric = "UnblendedCost"

// sheet is the pivoted view of one account's response: month columns in
// chronological order, one row per service sorted by descending total.
type sheet struct {
	Months []string
	Rows   []serviceRow
}

type serviceRow struct {
	Service string
	Cells   []decimal.Decimal
	Total   decimal.Decimal
}

// pivot flattens a multi-month response into the sheet layout. Months a
// service had no spend in are zero-filled so every row spans every column.
func pivot(out *sdk.GetCostAndUsageOutput) (sheet, error) {
	if out == nil || len(out.ResultsByTime) == 0 {
		return sheet{}, fmt.Errorf("billing response has no time-period buckets")
	}

	var s sheet
	amounts := make(map[string][]decimal.Decimal)

	for i, bucket := range out.ResultsByTime {
		if bucket.TimePeriod == nil || bucket.TimePeriod.Start == nil {
			return sheet{}, fmt.Errorf("time-period bucket %d is missing its start date", i)
		}
		periodStart, err := time.Parse("2006-01-02", aws.ToString(bucket.TimePeriod.Start))
		if err != nil {
			return sheet{}, fmt.Errorf("parse period start: %w", err)
		}
		s.Months = append(s.Months, periodStart.Format("Jan '06"))

		for _, group := range bucket.Groups {
			if len(group.Keys) == 0 {
				continue
			}
			name := group.Keys[0]

			metric, ok := group.Metrics[unblendedCostMetric]
			if !ok || metric.Amount == nil {
				return sheet{}, fmt.Errorf("service %q has no %s metric", name, unblendedCostMetric)
			}
			amount, err := decimal.NewFromString(aws.ToString(metric.Amount))
			if err != nil {
				return sheet{}, fmt.Errorf("parse cost for service %q: %w", name, err)
			}

			cells, seen := amounts[name]
			if !seen {
				cells = make([]decimal.Decimal, len(out.ResultsByTime))
			}
			cells[i] = cells[i].Add(amount.Round(2))
			amounts[name] = cells
		}
	}

	for name, cells := range amounts {
		total := decimal.Zero
		for _, cell := range cells {
			total = total.Add(cell)
		}
		s.Rows = append(s.Rows, serviceRow{Service: name, Cells: cells, Total: total})
	}
	sort.Slice(s.Rows, func(i, j int) bool {
		if !s.Rows[i].Total.Equal(s.Rows[j].Total) {
			return s.Rows[i].Total.GreaterThan(s.Rows[j].Total)
		}
		return s.Rows[i].Service < s.Rows[j].Service
	})

	return s, nil
}

// writeSheet renders one pivoted account onto a named worksheet.
func writeSheet(f *excelize.File, name string, s sheet) error {
	header := append([]string{"Service"}, s.Months...)
	header = append(header, "Total")
	for col, label := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, label); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, style); err != nil {
		return err
	}

	for i, row := range s.Rows {
		cells := make([]interface{}, 0, len(header))
		cells = append(cells, row.Service)
		for _, amount := range row.Cells {
			cells = append(cells, amount.InexactFloat64())
		}
		cells = append(cells, row.Total.InexactFloat64())

		for col, value := range cells {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(name, "A", "A", 40)
}

// sheetName trims an account name down to what xlsx allows: 31 chars,
// no :\/?*[] characters.
func sheetName(account string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	name := replacer.Replace(account)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
