// Package service drives the per-account ingestion pipeline:
// fetch, normalize, resolve dimensions, upsert facts.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	sdk "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/wescmx/aws/internal/costexplorer"
	"github.com/wescmx/aws/internal/costs/domain"
	"github.com/wescmx/aws/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BillingFetcher is the slice of the cost explorer client the runner needs.
type BillingFetcher interface {
	Fetch(ctx context.Context, account string, window costexplorer.Window) (*sdk.GetCostAndUsageOutput, error)
}

// Runner executes the ingestion pipeline for a batch of accounts.
type Runner struct {
	db      *gorm.DB
	repo    domain.Repository
	fetcher BillingFetcher
	log     *zap.Logger
	policy  domain.ConflictPolicy
	workers int
}

func NewRunner(db *gorm.DB, repo domain.Repository, fetcher BillingFetcher, policy domain.ConflictPolicy, workers int, log *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		db:      db,
		repo:    repo,
		fetcher: fetcher,
		log:     log.Named("ingest"),
		policy:  policy,
		workers: workers,
	}
}

// Result summarizes one batch run. Failed accounts never abort the batch;
// partial results are still useful.
type Result struct {
	Succeeded     []string
	Failed        []string
	FactsInserted int
}

// RunAll processes every account through the pipeline using a bounded
// worker pool. Accounts are independent: completion order is unspecified
// and one account's failure leaves the others untouched.
func (r *Runner) RunAll(ctx context.Context, accounts []string, window costexplorer.Window) Result {
	r.log.Info("starting ingestion batch",
		zap.Int("accounts", len(accounts)),
		zap.String("window_start", window.StartDate()),
		zap.String("window_end", window.EndDate()),
	)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
	)
	sem := make(chan struct{}, r.workers)

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(account string) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			inserted, err := r.runAccount(ctx, account, window)
			metrics.Ingest().ObserveAccountDuration(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.Ingest().IncAccountRun(metrics.AccountResultFailed)
				result.Failed = append(result.Failed, account)
				return
			}
			metrics.Ingest().IncAccountRun(metrics.AccountResultSucceeded)
			result.Succeeded = append(result.Succeeded, account)
			result.FactsInserted += inserted
		}(account)
	}
	wg.Wait()

	sort.Strings(result.Succeeded)
	sort.Strings(result.Failed)

	r.log.Info("ingestion batch finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("facts_inserted", result.FactsInserted),
	)
	return result
}

// runAccount walks one account through the pipeline stages in order. Any
// stage error terminates only this account's run; nothing is written to
// the store when the fetch fails.
func (r *Runner) runAccount(ctx context.Context, account string, window costexplorer.Window) (int, error) {
	log := r.log.With(zap.String("account", account))

	out, err := r.fetcher.Fetch(ctx, account, window)
	if err != nil {
		metrics.Ingest().IncStageError(metrics.StageFetch)
		log.Error("billing fetch failed, skipping account", zap.Error(err))
		return 0, err
	}

	stmt, err := Normalize(out, log)
	if err != nil {
		metrics.Ingest().IncStageError(metrics.StageNormalize)
		log.Error("response normalization failed", zap.Error(err))
		return 0, err
	}
	if len(stmt.Lines) == 0 {
		log.Info("no service costs in window")
		return 0, nil
	}

	// Each worker derives its own session; the pool underneath hands out
	// separate connections.
	sess := r.db.WithContext(ctx)

	facts, err := r.resolveFacts(ctx, sess, account, stmt)
	if err != nil {
		metrics.Ingest().IncStageError(metrics.StageResolve)
		log.Error("dimension resolution failed", zap.Error(err))
		return 0, err
	}

	inserted, err := r.repo.InsertFacts(ctx, sess, facts, r.policy)
	if err != nil {
		metrics.Ingest().IncStageError(metrics.StageUpsert)
		log.Error("fact upsert failed", zap.Error(err))
		return 0, err
	}
	metrics.Ingest().AddFactsInserted(inserted)
	metrics.Ingest().AddFactsSkipped(len(facts) - inserted)

	log.Info("account ingested",
		zap.String("month", stmt.MonthLabel),
		zap.String("year", stmt.YearLabel),
		zap.Int("services", len(stmt.Lines)),
		zap.Int("facts_inserted", inserted),
	)
	return inserted, nil
}

// resolveFacts maps the statement's natural keys onto surrogate ids. Month,
// year and account resolve once; each distinct service resolves once.
func (r *Runner) resolveFacts(ctx context.Context, sess *gorm.DB, account string, stmt domain.Statement) ([]domain.Fact, error) {
	monthID, err := r.repo.ResolveMonth(ctx, sess, stmt.MonthLabel)
	if err != nil {
		return nil, err
	}
	yearID, err := r.repo.ResolveYear(ctx, sess, stmt.YearLabel)
	if err != nil {
		return nil, err
	}
	accountID, err := r.repo.ResolveAccount(ctx, sess, account)
	if err != nil {
		return nil, err
	}

	facts := make([]domain.Fact, 0, len(stmt.Lines))
	for _, line := range stmt.Lines {
		serviceID, err := r.repo.ResolveService(ctx, sess, line.Service)
		if err != nil {
			return nil, err
		}
		facts = append(facts, domain.Fact{
			AccountID: accountID,
			ServiceID: serviceID,
			MonthID:   monthID,
			YearID:    yearID,
			Cost:      line.Amount,
		})
	}
	return facts, nil
}
