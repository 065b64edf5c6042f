// Package currency exposes per-chain currency configuration, most notably
// the minimum deposit amount consulted during acceptance.
package currency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/tradepoint/deposit-gateway/pkg/deposit"
)

// ErrNotConfigured is returned when a (blockchain, currency) pair has no
// configuration record. It wraps deposit.ErrMinimumNotConfigured so the
// processor can match on absence without depending on this package.
var ErrNotConfigured = fmt.Errorf("blockchain currency: %w", deposit.ErrMinimumNotConfigured)

// BlockchainCurrencyDao maps to the 'blockchain_currencies' table.
type BlockchainCurrencyDao struct {
	bun.BaseModel `bun:"table:blockchain_currencies,alias:bc"`

	ID               int64  `bun:"id,pk,autoincrement"`
	BlockchainKey    string `bun:"blockchain_key,notnull,type:varchar(32),unique:ux_blockchain_currencies_pair"`
	CurrencyID       string `bun:"currency_id,notnull,type:varchar(32),unique:ux_blockchain_currencies_pair"`
	MinDepositAmount string `bun:"min_deposit_amount,notnull,type:numeric(38,18)"`
}

// Store reads blockchain currency configuration from PostgreSQL.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// MinDepositAmount returns the configured minimum for the pair, or
// ErrNotConfigured when the pair is unknown.
func (s *Store) MinDepositAmount(ctx context.Context, blockchainKey, currencyID string) (decimal.Decimal, error) {
	dao := new(BlockchainCurrencyDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("blockchain_key = ?", blockchainKey).
		Where("currency_id = ?", currencyID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("%w: %s/%s", ErrNotConfigured, blockchainKey, currencyID)
		}
		return decimal.Decimal{}, fmt.Errorf("failed to get blockchain currency: %w", err)
	}

	minimum, err := decimal.NewFromString(dao.MinDepositAmount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid min_deposit_amount for %s/%s: %w", blockchainKey, currencyID, err)
	}
	return minimum, nil
}
