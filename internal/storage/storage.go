// Package storage is the Postgres-backed persistence layer: users,
// balances, exchange instance snapshots, orders, and candles. Grounded on
// the database layer the rest of the pack uses for Postgres-backed state
// (web3guy0-polybot/internal/database): a thin struct wrapping *gorm.DB,
// GORM model structs tagged with column types, AutoMigrate on Open, and one
// method per query the domain actually needs — no generic repository
// abstraction on top.
package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UserRow is the users table: unique API key, creation timestamp.
type UserRow struct {
	ID        string `gorm:"primaryKey"`
	APIKey    string `gorm:"uniqueIndex"`
	CreatedAt time.Time
}

func (UserRow) TableName() string { return "users" }

// BalanceRow is one (user, asset) -> amount row. Cash is stored as the row
// whose AssetName is the sentinel CashAsset.
type BalanceRow struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"index:idx_balance_user_asset,unique"`
	AssetName string `gorm:"index:idx_balance_user_asset,unique"`
	Amount    decimal.Decimal `gorm:"type:decimal(36,8)"`
}

func (BalanceRow) TableName() string { return "balances" }

// CashAsset is the reserved AssetName balances use for the user's quote
// currency, keeping BalanceRow a uniform asset -> amount mapping rather than
// carving out cash as a separate column.
const CashAsset = "__cash__"

// ExchangeInstanceRow is the persisted snapshot an engine hydrates from.
type ExchangeInstanceRow struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	UserID            string `gorm:"uniqueIndex"`
	LastUsedTimestamp time.Time
	Multiplier        float64
	Commission        decimal.Decimal `gorm:"type:decimal(10,6)"`
}

func (ExchangeInstanceRow) TableName() string { return "exchange_instances" }

// BaseOrderRow is the base_orders table: every field common across order
// kinds plus the kind-specific price fields, all nullable by kind.
type BaseOrderRow struct {
	ID             string `gorm:"primaryKey"`
	CreatedAt      time.Time
	OrderType      string
	Quantity       decimal.Decimal `gorm:"type:decimal(36,8)"`
	BaseAsset      string
	TargetAsset    string
	Direction      string
	ExecutionPrice decimal.Decimal `gorm:"type:decimal(36,8)"`
	StopPrice      decimal.Decimal `gorm:"type:decimal(36,8)"`
	SignalPrice    decimal.Decimal `gorm:"type:decimal(36,8)"`
	BlockedAmount  decimal.Decimal `gorm:"type:decimal(36,8)"`
	UserID         string          `gorm:"index"`
}

func (BaseOrderRow) TableName() string { return "base_orders" }

// OCOOrderRow is the sub-table keyed by base_orders.id recording the sibling
// link for the two legs of an OCO pair.
type OCOOrderRow struct {
	ID             string `gorm:"primaryKey"`
	BoundedOrderID string
}

func (OCOOrderRow) TableName() string { return "oco_orders" }

// CandleRow is one OHLCV bar.
type CandleRow struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Symbol    string    `gorm:"index:idx_candle_lookup,unique,priority:1"`
	Timeframe string    `gorm:"index:idx_candle_lookup,unique,priority:2"`
	Timestamp time.Time `gorm:"index:idx_candle_lookup,unique,priority:3"`
	Open      decimal.Decimal `gorm:"type:decimal(36,8)"`
	High      decimal.Decimal `gorm:"type:decimal(36,8)"`
	Low       decimal.Decimal `gorm:"type:decimal(36,8)"`
	Close     decimal.Decimal `gorm:"type:decimal(36,8)"`
	Volume    decimal.Decimal `gorm:"type:decimal(36,8)"`
}

func (CandleRow) TableName() string { return "candles" }

// Storage wraps the GORM connection and exposes one repository per table
// group. Dialect is Postgres only: the config layer assembles a DSN from the
// POSTGRES_{DB,HOST,PASSWORD,PORT,USER} environment variables.
type Storage struct {
	db *gorm.DB
}

// Open connects to Postgres at dsn and migrates every model the core reads
// or writes.
func Open(dsn string) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	if err := db.AutoMigrate(
		&UserRow{},
		&BalanceRow{},
		&ExchangeInstanceRow{},
		&BaseOrderRow{},
		&OCOOrderRow{},
		&CandleRow{},
	); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
