// Package costexplorer fetches per-service monthly spend from the AWS
// Cost Explorer API, one shared-config profile per account.
package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/wescmx/aws/internal/observability/metrics"
	"github.com/wescmx/aws/internal/retry"
	"go.uber.org/zap"
)

// ErrExhausted reports that every retry attempt against the billing API
// failed; it wraps the last underlying cause.
var ErrExhausted = errors.New("cost explorer retries exhausted")

// API is the subset of the Cost Explorer client the fetcher depends on.
type API interface {
	GetCostAndUsage(ctx context.Context, params *sdk.GetCostAndUsageInput, optFns ...func(*sdk.Options)) (*sdk.GetCostAndUsageOutput, error)
}

// APIFactory builds an API client authenticated as one account profile.
type APIFactory func(ctx context.Context, profile string) (API, error)

// NewAPIFactory returns a factory backed by AWS shared config: each account
// name is resolved as a profile in ~/.aws/config.
func NewAPIFactory(region string) APIFactory {
	return func(ctx context.Context, profile string) (API, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithSharedConfigProfile(profile),
			awsconfig.WithRegion(region),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config for profile %q: %w", profile, err)
		}
		return sdk.NewFromConfig(cfg), nil
	}
}

// Fetcher issues one GetCostAndUsage call per account with bounded retry.
type Fetcher struct {
	newAPI APIFactory
	policy retry.Policy
	log    *zap.Logger
}

const (
	maxAttempts = 3
	backoffBase = time.Second
)

func NewFetcher(factory APIFactory, log *zap.Logger) *Fetcher {
	return &Fetcher{
		newAPI: factory,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     retry.Exponential(backoffBase),
		},
		log: log.Named("costexplorer"),
	}
}

// WithSleep overrides the backoff sleep, used by tests to observe delays.
func (f *Fetcher) WithSleep(sleep retry.SleepFunc) *Fetcher {
	f.policy.Sleep = sleep
	return f
}

// Fetch requests monthly unblended cost grouped by service for the window.
// Any remote failure counts as transient; after exhausting retries the
// returned error wraps ErrExhausted and the last cause.
func (f *Fetcher) Fetch(ctx context.Context, account string, window Window) (*sdk.GetCostAndUsageOutput, error) {
	api, err := f.newAPI(ctx, account)
	if err != nil {
		return nil, err
	}

	input := &sdk.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(window.StartDate()),
			End:   aws.String(window.EndDate()),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
	}

	policy := f.policy
	policy.OnRetry = func(attempt int, err error) {
		metrics.Ingest().IncFetchRetry()
		f.log.Warn("cost explorer call failed, retrying",
			zap.String("account", account),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err),
		)
	}

	var out *sdk.GetCostAndUsageOutput
	err = policy.Do(ctx, func(ctx context.Context) error {
		metrics.Ingest().IncFetchAttempt()
		var callErr error
		out, callErr = api.GetCostAndUsage(ctx, input)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w for account %q: %w", ErrExhausted, account, err)
	}
	return out, nil
}
