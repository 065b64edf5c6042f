// Package depositstore persists deposit records and provides the per-record
// exclusive lock the ingestion state machine runs under.
package depositstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tradepoint/deposit-gateway/pkg/deposit"
)

// ErrDepositNotFound is returned when a deposit lookup finds no matching record.
var ErrDepositNotFound = errors.New("deposit not found")

// Store is the PostgreSQL implementation of deposit.Store.
type Store struct {
	db *bun.DB
	// lockTimeout bounds how long the per-record critical section may be
	// held; storage stalls must not pin the row lock indefinitely.
	lockTimeout time.Duration
}

// NewStore creates a new deposit store. A zero lockTimeout disables the
// critical-section deadline.
func NewStore(db *bun.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// FindOrCreate resolves the record for the deposit's natural key, inserting
// it if absent. Two processors racing on the same key converge on exactly one
// row via INSERT ... ON CONFLICT DO NOTHING against the natural-key index.
func (s *Store) FindOrCreate(ctx context.Context, d *deposit.Deposit) (*deposit.Deposit, bool, error) {
	dao := toDao(d)

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (blockchain_key, currency_id, txid, txout) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert deposit: %w", err)
	}

	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	out, err := s.Get(ctx, d.Key)
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// Get retrieves a deposit by its natural key.
func (s *Store) Get(ctx context.Context, key deposit.Key) (*deposit.Deposit, error) {
	dao := new(DepositDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("blockchain_key = ?", key.BlockchainKey).
		Where("currency_id = ?", key.CurrencyID).
		Where("txid = ?", key.TxID).
		Where("txout = ?", key.TxOut).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDepositNotFound, key)
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return toDeposit(dao)
}

// List retrieves the most recent deposits.
func (s *Store) List(ctx context.Context, limit int) ([]*deposit.Deposit, error) {
	var daos []DepositDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	deposits := make([]*deposit.Deposit, len(daos))
	for i := range daos {
		if deposits[i], err = toDeposit(&daos[i]); err != nil {
			return nil, err
		}
	}
	return deposits, nil
}

// WithLock runs fn inside a transaction holding a row-level lock on the
// record identified by key. The lock serializes state transitions for one
// natural key across all workers and process instances.
func (s *Store) WithLock(ctx context.Context, key deposit.Key, fn func(ctx context.Context, tx deposit.Tx) error) error {
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao := new(DepositDao)
		err := tx.NewSelect().
			Model(dao).
			Where("blockchain_key = ?", key.BlockchainKey).
			Where("currency_id = ?", key.CurrencyID).
			Where("txid = ?", key.TxID).
			Where("txout = ?", key.TxOut).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrDepositNotFound, key)
			}
			return fmt.Errorf("failed to lock deposit: %w", err)
		}

		d, err := toDeposit(dao)
		if err != nil {
			return err
		}
		return fn(ctx, &lockedTx{tx: tx, dao: dao, dep: d})
	})
}

// lockedTx implements deposit.Tx on top of the locked row.
type lockedTx struct {
	tx  bun.Tx
	dao *DepositDao
	dep *deposit.Deposit
}

func (t *lockedTx) Deposit() *deposit.Deposit { return t.dep }

func (t *lockedTx) UpdateState(ctx context.Context, state deposit.State) error {
	if !deposit.CanTransition(t.dep.State, state) {
		return fmt.Errorf("illegal transition %s -> %s for %s", t.dep.State, state, t.dep.Key)
	}

	_, err := t.tx.NewUpdate().
		Model((*DepositDao)(nil)).
		Set("state = ?", string(state)).
		Set("updated_at = NOW()").
		Where("id = ?", t.dao.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update deposit state: %w", err)
	}

	t.dep.State = state
	t.dao.State = string(state)
	return nil
}

func (t *lockedTx) AppendError(ctx context.Context, reason string) error {
	_, err := t.tx.NewUpdate().
		Model((*DepositDao)(nil)).
		Set("last_error = COALESCE(last_error || E'\n', '') || ?", reason).
		Set("updated_at = NOW()").
		Where("id = ?", t.dao.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append deposit error: %w", err)
	}

	t.dep.Errors = append(t.dep.Errors, reason)
	return nil
}
