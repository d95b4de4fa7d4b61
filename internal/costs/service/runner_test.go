package service

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/wescmx/aws/internal/costs/domain"
	"github.com/wescmx/aws/internal/costs/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeFetcher struct {
	responses map[string]*sdk.GetCostAndUsageOutput
	errors    map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, account string, _ costexplorer.Window) (*sdk.GetCostAndUsageOutput, error) {
	if err, ok := f.errors[account]; ok {
		return nil, err
	}
	out, ok := f.responses[account]
	if !ok {
		return nil, fmt.Errorf("no canned response for account %q", account)
	}
	return out, nil
}

func monthlyResponse(start string, services map[string]string) *sdk.GetCostAndUsageOutput {
	groups := make([]types.Group, 0, len(services))
	for name, amount := range services {
		groups = append(groups, types.Group{
			Keys: []string{name},
			Metrics: map[string]types.MetricValue{
				"UnblendedCost": {Amount: awssdk.String(amount), Unit: awssdk.String("USD")},
			},
		})
	}
	return &sdk.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{
			{
				TimePeriod: &types.DateInterval{Start: awssdk.String(start)},
				Groups:     groups,
			},
		},
	}
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Account{},
		&domain.Service{},
		&domain.Month{},
		&domain.Year{},
		&domain.CostFact{},
	))
	return db
}

func newRunner(t *testing.T, db *gorm.DB, fetcher BillingFetcher, workers int) *Runner {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewRunner(db, repository.Provide(node), fetcher, domain.ConflictIgnore, workers, zap.NewNop())
}

func testWindow(t *testing.T) costexplorer.Window {
	t.Helper()
	w, err := costexplorer.ParseWindow("2026-07-01", "2026-08-01")
	require.NoError(t, err)
	return w
}

func TestRunAllIngestsAllAccounts(t *testing.T) {
	db := setupDB(t)
	fetcher := &fakeFetcher{
		responses: map[string]*sdk.GetCostAndUsageOutput{
			"prod":    monthlyResponse("2026-07-01", map[string]string{"Amazon EC2": "12.50", "Amazon S3": "3.00"}),
			"staging": monthlyResponse("2026-07-01", map[string]string{"Amazon EC2": "4.25"}),
		},
	}
	r := newRunner(t, db, fetcher, 2)

	result := r.RunAll(context.Background(), []string{"prod", "staging"}, testWindow(t))

	assert.Equal(t, []string{"prod", "staging"}, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 3, result.FactsInserted)

	var facts int64
	require.NoError(t, db.Model(&domain.CostFact{}).Count(&facts).Error)
	assert.EqualValues(t, 3, facts)

	// "Amazon EC2" appears for both accounts but resolves to one row.
	var services int64
	require.NoError(t, db.Model(&domain.Service{}).Count(&services).Error)
	assert.EqualValues(t, 2, services)
}

func TestRunAllSecondRunIsIdempotent(t *testing.T) {
	db := setupDB(t)
	fetcher := &fakeFetcher{
		responses: map[string]*sdk.GetCostAndUsageOutput{
			"prod": monthlyResponse("2026-07-01", map[string]string{"Amazon EC2": "12.50"}),
		},
	}
	r := newRunner(t, db, fetcher, 1)
	ctx := context.Background()
	window := testWindow(t)

	first := r.RunAll(ctx, []string{"prod"}, window)
	assert.Equal(t, 1, first.FactsInserted)

	second := r.RunAll(ctx, []string{"prod"}, window)
	assert.Equal(t, []string{"prod"}, second.Succeeded)
	assert.Equal(t, 0, second.FactsInserted)

	var facts int64
	require.NoError(t, db.Model(&domain.CostFact{}).Count(&facts).Error)
	assert.EqualValues(t, 1, facts)
}

func TestRunAllFailedAccountLeavesSiblingsUntouched(t *testing.T) {
	db := setupDB(t)
	fetcher := &fakeFetcher{
		responses: map[string]*sdk.GetCostAndUsageOutput{
			"prod": monthlyResponse("2026-07-01", map[string]string{"Amazon S3": "3.00"}),
		},
		errors: map[string]error{
			"broken": fmt.Errorf("%w for account %q: throttled", costexplorer.ErrExhausted, "broken"),
		},
	}
	r := newRunner(t, db, fetcher, 2)

	result := r.RunAll(context.Background(), []string{"broken", "prod"}, testWindow(t))

	assert.Equal(t, []string{"prod"}, result.Succeeded)
	assert.Equal(t, []string{"broken"}, result.Failed)
	assert.Equal(t, 1, result.FactsInserted)

	// The failed account left no dimension rows behind.
	var accounts int64
	require.NoError(t, db.Model(&domain.Account{}).Count(&accounts).Error)
	assert.EqualValues(t, 1, accounts)

	var name string
	require.NoError(t, db.Model(&domain.Account{}).Pluck("account_name", &name).Error)
	assert.Equal(t, "prod", name)
}

func TestRunAllEmptyStatementIsSuccess(t *testing.T) {
	db := setupDB(t)
	fetcher := &fakeFetcher{
		responses: map[string]*sdk.GetCostAndUsageOutput{
			"quiet": monthlyResponse("2026-07-01", nil),
		},
	}
	r := newRunner(t, db, fetcher, 1)

	result := r.RunAll(context.Background(), []string{"quiet"}, testWindow(t))

	assert.Equal(t, []string{"quiet"}, result.Succeeded)
	assert.Equal(t, 0, result.FactsInserted)

	var facts int64
	require.NoError(t, db.Model(&domain.CostFact{}).Count(&facts).Error)
	assert.Zero(t, facts)
}

func TestRunAllConcurrencyMatchesSequential(t *testing.T) {
	responses := map[string]*sdk.GetCostAndUsageOutput{}
	accounts := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("account-%d", i)
		accounts = append(accounts, name)
		responses[name] = monthlyResponse("2026-07-01", map[string]string{
			"Amazon EC2": "10.00",
			"Amazon S3":  "2.00",
		})
	}

	sequentialDB := setupDB(t)
	sequential := newRunner(t, sequentialDB, &fakeFetcher{responses: responses}, 1).
		RunAll(context.Background(), accounts, testWindow(t))

	concurrentDB := setupDB(t)
	concurrent := newRunner(t, concurrentDB, &fakeFetcher{responses: responses}, 4).
		RunAll(context.Background(), accounts, testWindow(t))

	assert.Equal(t, sequential.Succeeded, concurrent.Succeeded)
	assert.Equal(t, sequential.FactsInserted, concurrent.FactsInserted)

	for _, db := range []*gorm.DB{sequentialDB, concurrentDB} {
		var facts, services int64
		require.NoError(t, db.Model(&domain.CostFact{}).Count(&facts).Error)
		require.NoError(t, db.Model(&domain.Service{}).Count(&services).Error)
		assert.EqualValues(t, 16, facts)
		assert.EqualValues(t, 2, services)
	}
}

func TestRunAllOverwritePolicyReplacesAmounts(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fetcher := &fakeFetcher{
		responses: map[string]*sdk.GetCostAndUsageOutput{
			"prod": monthlyResponse("2026-07-01", map[string]string{"Amazon EC2": "12.50"}),
		},
	}
	r := NewRunner(db, repository.Provide(node), fetcher, domain.ConflictOverwrite, 1, zap.NewNop())
	ctx := context.Background()
	window := testWindow(t)

	r.RunAll(ctx, []string{"prod"}, window)

	fetcher.responses["prod"] = monthlyResponse("2026-07-01", map[string]string{"Amazon EC2": "99.99"})
	r.RunAll(ctx, []string{"prod"}, window)

	var fact domain.CostFact
	require.NoError(t, db.First(&fact).Error)
	assert.True(t, fact.Cost.Equal(decimal.RequireFromString("99.99")))

	var facts int64
	require.NoError(t, db.Model(&domain.CostFact{}).Count(&facts).Error)
	assert.EqualValues(t, 1, facts)
}
