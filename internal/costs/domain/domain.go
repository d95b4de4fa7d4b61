package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrStoreUnavailable reports that the backing store could not be
	// reached or queried. The resolver never retries internally.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUpsertFailed reports that a fact batch could not be committed;
	// the whole batch was rolled back.
	ErrUpsertFailed = errors.New("fact upsert failed")
)

// ServiceCost is one normalized (service, amount) line for the window.
type ServiceCost struct {
	Service string
	Amount  decimal.Decimal
}

// Statement is the flattened form of one account's billing response:
// a single month/year pair plus deduplicated per-service cost lines.
type Statement struct {
	MonthLabel string
	YearLabel  string
	Lines      []ServiceCost
}

// Fact is one resolved cost row ready for insertion.
type Fact struct {
	AccountID snowflake.ID
	ServiceID snowflake.ID
	MonthID   snowflake.ID
	YearID    snowflake.ID
	Cost      decimal.Decimal
}

// ConflictPolicy decides what happens when a fact batch hits an existing
// (account, service, month, year) row.
type ConflictPolicy string

const (
	// ConflictIgnore keeps the existing amount; re-ingestion is a no-op.
	ConflictIgnore ConflictPolicy = "ignore"
	// ConflictOverwrite replaces the stored amount with the restated one.
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// Repository resolves dimension rows and writes fact batches. Callers pass
// their own gorm session so concurrent account workers never share one.
type Repository interface {
	ResolveAccount(ctx context.Context, db *gorm.DB, name string) (snowflake.ID, error)
	ResolveService(ctx context.Context, db *gorm.DB, name string) (snowflake.ID, error)
	ResolveMonth(ctx context.Context, db *gorm.DB, label string) (snowflake.ID, error)
	ResolveYear(ctx context.Context, db *gorm.DB, label string) (snowflake.ID, error)

	// InsertFacts applies the batch in one transaction and reports how many
	// rows were newly inserted (or overwritten, under ConflictOverwrite).
	InsertFacts(ctx context.Context, db *gorm.DB, facts []Fact, policy ConflictPolicy) (int, error)

	CountFacts(ctx context.Context, db *gorm.DB) (int64, error)
}
