// Package domain contains the persistence models for the cost star schema:
// four dimension tables and one fact table keyed by their surrogate ids.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Account is a billing account dimension row, created lazily on first
// sighting and never updated.
type Account struct {
	ID   snowflake.ID `gorm:"column:account_id;primaryKey"`
	Name string       `gorm:"column:account_name;type:varchar(255);uniqueIndex;not null"`
}

func (Account) TableName() string { return "accounts" }

// Service is an AWS service dimension row.
type Service struct {
	ID   snowflake.ID `gorm:"column:service_id;primaryKey"`
	Name string       `gorm:"column:service_name;type:varchar(255);uniqueIndex;not null"`
}

func (Service) TableName() string { return "services" }

// Month is a month-label dimension row. The three-letter label alone does
// not disambiguate the year; facts always pair it with a Year row.
type Month struct {
	ID   snowflake.ID `gorm:"column:month_id;primaryKey"`
	Name string       `gorm:"column:month_name;type:varchar(20);uniqueIndex;not null"`
}

func (Month) TableName() string { return "months" }

// Year is a 4-digit year-label dimension row.
type Year struct {
	ID   snowflake.ID `gorm:"column:year_id;primaryKey"`
	Name string       `gorm:"column:year_name;type:varchar(4);uniqueIndex;not null"`
}

func (Year) TableName() string { return "years" }

// CostFact ties one monthly unblended cost amount to its dimension tuple.
// The composite unique index makes re-ingestion of a period idempotent.
type CostFact struct {
	ID        snowflake.ID    `gorm:"column:cost_id;primaryKey"`
	AccountID snowflake.ID    `gorm:"column:account_id;uniqueIndex:ux_aws_costs_dims;not null"`
	ServiceID snowflake.ID    `gorm:"column:service_id;uniqueIndex:ux_aws_costs_dims;not null"`
	MonthID   snowflake.ID    `gorm:"column:month_id;uniqueIndex:ux_aws_costs_dims;not null"`
	YearID    snowflake.ID    `gorm:"column:year_id;uniqueIndex:ux_aws_costs_dims;not null"`
	Cost      decimal.Decimal `gorm:"column:cost;type:decimal(18,2);not null"`
}

func (CostFact) TableName() string { return "aws_costs" }
