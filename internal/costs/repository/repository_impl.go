package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/wescmx/aws/internal/costs/domain"
	"github.com/wescmx/aws/internal/observability/metrics"
	dbpkg "github.com/wescmx/aws/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) domain.Repository {
	return &repo{genID: genID}
}

// dimensionSpec describes one lookup table of the star schema.
type dimensionSpec struct {
	table      string
	idColumn   string
	nameColumn string
}

var (
	accountDim = dimensionSpec{table: "accounts", idColumn: "account_id", nameColumn: "account_name"}
	serviceDim = dimensionSpec{table: "services", idColumn: "service_id", nameColumn: "service_name"}
	monthDim   = dimensionSpec{table: "months", idColumn: "month_id", nameColumn: "month_name"}
	yearDim    = dimensionSpec{table: "years", idColumn: "year_id", nameColumn: "year_name"}
)

func (r *repo) ResolveAccount(ctx context.Context, db *gorm.DB, name string) (snowflake.ID, error) {
	return r.resolveDimension(ctx, db, accountDim, name)
}

func (r *repo) ResolveService(ctx context.Context, db *gorm.DB, name string) (snowflake.ID, error) {
	return r.resolveDimension(ctx, db, serviceDim, name)
}

func (r *repo) ResolveMonth(ctx context.Context, db *gorm.DB, label string) (snowflake.ID, error) {
	return r.resolveDimension(ctx, db, monthDim, label)
}

func (r *repo) ResolveYear(ctx context.Context, db *gorm.DB, label string) (snowflake.ID, error) {
	return r.resolveDimension(ctx, db, yearDim, label)
}

// resolveDimension looks up the surrogate id for a natural key, inserting
// the row on first sighting. The insert ignores conflicts and is followed
// by a re-read, so concurrent workers racing on the same key converge on
// one row and one id.
func (r *repo) resolveDimension(ctx context.Context, db *gorm.DB, spec dimensionSpec, key string) (snowflake.ID, error) {
	tx := db.WithContext(ctx)

	id, found, err := lookupDimension(tx, spec, key)
	if err != nil {
		return 0, storeErr(spec.table, err)
	}
	if found {
		return id, nil
	}

	res := tx.Table(spec.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: spec.nameColumn}},
			DoNothing: true,
		}).
		Create(map[string]any{
			spec.idColumn:   r.genID.Generate(),
			spec.nameColumn: key,
		})
	// A racing worker may surface the conflict as a duplicate-key error
	// instead of the clause swallowing it; the re-read below converges.
	if res.Error != nil && !dbpkg.IsDuplicateKeyErr(res.Error) {
		return 0, storeErr(spec.table, res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		metrics.Ingest().IncDimensionCreated(spec.table)
	}

	id, found, err = lookupDimension(tx, spec, key)
	if err != nil {
		return 0, storeErr(spec.table, err)
	}
	if !found {
		return 0, storeErr(spec.table, fmt.Errorf("row for %q missing after insert", key))
	}
	return id, nil
}

func lookupDimension(tx *gorm.DB, spec dimensionSpec, key string) (snowflake.ID, bool, error) {
	var ids []snowflake.ID
	err := tx.Table(spec.table).
		Where(spec.nameColumn+" = ?", key).
		Limit(1).
		Pluck(spec.idColumn, &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// InsertFacts applies one batch inside a transaction. Under ConflictIgnore
// existing periods are left untouched; under ConflictOverwrite the stored
// amount is replaced. RowsAffected reports the rows actually written.
func (r *repo) InsertFacts(ctx context.Context, db *gorm.DB, facts []domain.Fact, policy domain.ConflictPolicy) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	rows := make([]domain.CostFact, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, domain.CostFact{
			ID:        r.genID.Generate(),
			AccountID: f.AccountID,
			ServiceID: f.ServiceID,
			MonthID:   f.MonthID,
			YearID:    f.YearID,
			Cost:      f.Cost,
		})
	}

	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "service_id"},
			{Name: "month_id"},
			{Name: "year_id"},
		},
		DoNothing: true,
	}
	if policy == domain.ConflictOverwrite {
		onConflict.DoNothing = false
		onConflict.DoUpdates = clause.AssignmentColumns([]string{"cost"})
	}

	written := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(onConflict).Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		written = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUpsertFailed, err)
	}
	return written, nil
}

func (r *repo) CountFacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.CostFact{}).Count(&count).Error; err != nil {
		return 0, storeErr("aws_costs", err)
	}
	return count, nil
}

func storeErr(table string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, table, err)
}
