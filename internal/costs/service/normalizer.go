package service

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/shopspring/decimal"
	"github.com/wescmx/aws/internal/costs/domain"
	"go.uber.org/zap"
)

const unblendedCostMetric = "UnblendedCost"

// Normalize flattens a Cost Explorer response into one statement: the
// month/year labels of the first time-period bucket plus one cost line per
// distinct service. The pipeline requests a single month, so extra buckets
// are logged and ignored rather than silently merged into the wrong period.
func Normalize(out *sdk.GetCostAndUsageOutput, log *zap.Logger) (domain.Statement, error) {
	if out == nil || len(out.ResultsByTime) == 0 {
		return domain.Statement{}, fmt.Errorf("billing response has no time-period buckets")
	}
	if len(out.ResultsByTime) > 1 {
		log.Warn("billing response has extra time-period buckets, using the first",
			zap.Int("buckets", len(out.ResultsByTime)),
		)
	}

	bucket := out.ResultsByTime[0]
	if bucket.TimePeriod == nil || bucket.TimePeriod.Start == nil {
		return domain.Statement{}, fmt.Errorf("time-period bucket is missing its start date")
	}

	periodStart, err := time.Parse("2006-01-02", aws.ToString(bucket.TimePeriod.Start))
	if err != nil {
		return domain.Statement{}, fmt.Errorf("parse period start: %w", err)
	}

	stmt := domain.Statement{
		MonthLabel: periodStart.Format("Jan"),
		YearLabel:  periodStart.Format("2006"),
	}

	seen := make(map[string]struct{}, len(bucket.Groups))
	for _, group := range bucket.Groups {
		if len(group.Keys) == 0 {
			continue
		}
		name := group.Keys[0]
		if _, dup := seen[name]; dup {
			continue
		}

		metric, ok := group.Metrics[unblendedCostMetric]
		if !ok || metric.Amount == nil {
			return domain.Statement{}, fmt.Errorf("service %q has no %s metric", name, unblendedCostMetric)
		}
		amount, err := decimal.NewFromString(aws.ToString(metric.Amount))
		if err != nil {
			return domain.Statement{}, fmt.Errorf("parse cost for service %q: %w", name, err)
		}

		seen[name] = struct{}{}
		stmt.Lines = append(stmt.Lines, domain.ServiceCost{
			Service: name,
			Amount:  amount.Round(2),
		})
	}

	return stmt, nil
}
