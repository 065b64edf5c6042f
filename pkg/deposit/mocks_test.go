package deposit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MockVerifier is a mock implementation of PayloadVerifier. The default
// behavior decodes the payload as plain JSON.
type MockVerifier struct {
	VerifyFunc func(payload []byte) (*Notification, error)
}

func (m *MockVerifier) Verify(payload []byte) (*Notification, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(payload)
	}
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MockMinimums is a mock implementation of MinimumAmountLookup
type MockMinimums struct {
	MinDepositAmountFunc func(ctx context.Context, blockchainKey, currencyID string) (decimal.Decimal, error)
}

func (m *MockMinimums) MinDepositAmount(ctx context.Context, blockchainKey, currencyID string) (decimal.Decimal, error) {
	if m.MinDepositAmountFunc != nil {
		return m.MinDepositAmountFunc(ctx, blockchainKey, currencyID)
	}
	return decimal.Zero, nil
}

// MockLedger is a mock implementation of LedgerCredit that counts credits
type MockLedger struct {
	CreditFunc func(ctx context.Context, d *Deposit) error

	mu      sync.Mutex
	credits []Key
}

func (m *MockLedger) Credit(ctx context.Context, d *Deposit) error {
	if m.CreditFunc != nil {
		if err := m.CreditFunc(ctx, d); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, d.Key)
	return nil
}

func (m *MockLedger) Credits() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Key(nil), m.credits...)
}

// MockReporter records reported errors
type MockReporter struct {
	mu     sync.Mutex
	errors []error
}

func (m *MockReporter) Report(_ context.Context, err error, _ []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}

func (m *MockReporter) Reported() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}

// memStore is an in-memory Store with real per-key locking, so concurrent
// duplicate delivery can be exercised without a database.
type memStore struct {
	mu      sync.Mutex
	records map[Key]*Deposit
	locks   map[Key]*sync.Mutex
	created int
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[Key]*Deposit),
		locks:   make(map[Key]*sync.Mutex),
	}
}

func (s *memStore) FindOrCreate(_ context.Context, d *Deposit) (*Deposit, bool, error) {
	s.mu.Lock()
	existing, ok := s.records[d.Key]
	if !ok {
		stored := *d
		s.records[d.Key] = &stored
		s.locks[d.Key] = &sync.Mutex{}
		s.created++
		clone := stored
		s.mu.Unlock()
		return &clone, true, nil
	}
	lock := s.locks[d.Key]
	s.mu.Unlock()

	// Clone under the record lock so a concurrent transition is not observed
	// mid-write.
	lock.Lock()
	clone := *existing
	lock.Unlock()
	return &clone, false, nil
}

func (s *memStore) WithLock(ctx context.Context, key Key, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	record, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("deposit not found: %s", key)
	}
	lock := s.locks[key]
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, &memTx{dep: record})
}

func (s *memStore) get(key Key) *Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.records[key]; ok {
		clone := *d
		return &clone
	}
	return nil
}

type memTx struct {
	dep *Deposit
}

func (t *memTx) Deposit() *Deposit { return t.dep }

func (t *memTx) UpdateState(_ context.Context, state State) error {
	if !CanTransition(t.dep.State, state) {
		return fmt.Errorf("illegal transition %s -> %s", t.dep.State, state)
	}
	t.dep.State = state
	return nil
}

func (t *memTx) AppendError(_ context.Context, reason string) error {
	t.dep.Errors = append(t.dep.Errors, reason)
	return nil
}
