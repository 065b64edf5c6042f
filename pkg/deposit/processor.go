package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradepoint/deposit-gateway/internal/metrics"
	apperrors "github.com/tradepoint/deposit-gateway/pkg/app/errors"
	"github.com/tradepoint/deposit-gateway/pkg/chain"
)

// ErrAmountMismatch signals that a notification carried a different amount
// than the recorded deposit with the same natural key. This is a
// data-integrity fault, never silently coerced.
var ErrAmountMismatch = errors.New("deposit amount mismatch")

// ErrMinimumNotConfigured signals that no minimum deposit amount exists for a
// blockchain/currency pair. Lookups return it (possibly wrapped) for absent
// configuration; any other error is treated as transient.
var ErrMinimumNotConfigured = errors.New("minimum deposit amount not configured")

// Tx is the locked view of one deposit record. All reads and transitions
// inside the critical section go through it; UpdateState also refreshes the
// in-memory record so subsequent guards observe the new state.
type Tx interface {
	Deposit() *Deposit
	UpdateState(ctx context.Context, state State) error
	AppendError(ctx context.Context, reason string) error
}

// Store is the durable deposit record store.
//
// FindOrCreate must be atomic with respect to concurrent creation attempts
// for the same natural key. WithLock runs fn under an exclusive per-record
// lock held for the duration of the callback; the lock must be effective
// across process instances, not just goroutines.
type Store interface {
	FindOrCreate(ctx context.Context, d *Deposit) (out *Deposit, created bool, err error)
	WithLock(ctx context.Context, key Key, fn func(ctx context.Context, tx Tx) error) error
}

// MinimumAmountLookup resolves the configured minimum deposit amount for a
// currency on a chain. Absence of configuration is an error, not a skip:
// implementations must return an error wrapping ErrMinimumNotConfigured when
// no row exists, so the processor can tell missing configuration apart from a
// failed lookup.
type MinimumAmountLookup interface {
	MinDepositAmount(ctx context.Context, blockchainKey, currencyID string) (decimal.Decimal, error)
}

// LedgerCredit credits the owner's ledger balance for a dispatched deposit.
// The call must either succeed or return an error; the processor never
// retries it and relies on the surrounding transaction to keep dispatch
// exactly-once.
type LedgerCredit interface {
	Credit(ctx context.Context, d *Deposit) error
}

// PayloadVerifier verifies the signed notification envelope and decodes it.
type PayloadVerifier interface {
	Verify(payload []byte) (*Notification, error)
}

// Reporter is the exception-reporting boundary. Reported errors carry the
// offending payload for postmortem analysis.
type Reporter interface {
	Report(ctx context.Context, err error, payload []byte)
}

// Processor consumes deposit notifications and drives the deposit state
// machine. It is safe for concurrent use; serialization per deposit is
// enforced by the store's per-record lock, not by message order.
type Processor struct {
	verifier PayloadVerifier
	chains   *chain.Registry
	store    Store
	minimums MinimumAmountLookup
	ledger   LedgerCredit
	reporter Reporter
	logger   *zap.Logger
}

// NewProcessor creates a new deposit ingestion processor.
func NewProcessor(
	verifier PayloadVerifier,
	chains *chain.Registry,
	store Store,
	minimums MinimumAmountLookup,
	ledger LedgerCredit,
	reporter Reporter,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		verifier: verifier,
		chains:   chains,
		store:    store,
		minimums: minimums,
		ledger:   ledger,
		reporter: reporter,
		logger:   logger,
	}
}

// Process consumes one deposit notification payload.
//
// Taxonomy errors (bad payload, integrity violation, missing configuration)
// are reported to the exception boundary and the message is considered
// handled: Process returns nil, because redelivering such a message cannot
// succeed. Storage and other transient errors are returned to the transport,
// which owns the retry policy.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	start := time.Now()
	defer func() {
		metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	n, err := p.verifier.Verify(payload)
	if err != nil {
		p.handled(ctx, apperrors.BadDataError(err, "unverifiable deposit notification"), payload, "bad_payload")
		return nil
	}

	amount, err := n.DecimalAmount()
	if err != nil {
		p.handled(ctx, apperrors.BadDataError(err, "invalid deposit amount"), payload, "bad_payload")
		return nil
	}
	if amount.IsZero() {
		p.logger.Warn("deposit notification skipped, amount is zero",
			zap.String("txid", n.TxID),
			zap.String("currency", n.CurrencyID))
		metrics.NotificationsTotal.WithLabelValues("zero_amount").Inc()
		return nil
	}

	kind, uid := n.Owner()
	if kind != OwnerKindUser {
		p.logger.Info("deposit notification skipped, not a user deposit",
			zap.String("owner_id", n.OwnerID),
			zap.String("txid", n.TxID))
		metrics.NotificationsTotal.WithLabelValues("out_of_scope").Inc()
		return nil
	}
	if uid == "" {
		p.handled(ctx, apperrors.BadDataError(nil, "owner id has no uid part"), payload, "bad_payload")
		return nil
	}

	blockNumber, err := n.ParseBlockNumber()
	if err != nil {
		p.handled(ctx, apperrors.BadDataError(err, "invalid block number"), payload, "bad_payload")
		return nil
	}

	ch, err := p.chains.Get(n.BlockchainKey)
	if err != nil {
		p.handled(ctx, apperrors.ResourceNotFoundError(err, "blockchain not configured"), payload, "config_missing")
		return nil
	}

	resolved, created, err := p.store.FindOrCreate(ctx, &Deposit{
		Key:           n.Key(),
		OwnerUID:      uid,
		Address:       ch.NormalizeAddress(n.ToAddress),
		Amount:        amount,
		FromAddresses: ch.NormalizeAddresses(n.FromAddresses),
		BlockNumber:   blockNumber,
		State:         StateSubmitted,
	})
	if err != nil {
		return fmt.Errorf("failed to find or create deposit %s: %w", n.Key(), err)
	}
	if created {
		metrics.DepositsCreated.WithLabelValues(n.BlockchainKey).Inc()
	}
	p.logger.Info("resolved deposit for notification",
		zap.String("deposit", resolved.Key.String()),
		zap.String("amount", amount.String()),
		zap.Bool("created", created))

	err = p.store.WithLock(ctx, resolved.Key, func(ctx context.Context, tx Tx) error {
		return p.applyTransitions(ctx, tx, n, amount)
	})
	if err != nil {
		switch apperrors.CategoryOf(err) {
		case apperrors.CategoryDataConflict:
			p.handled(ctx, err, payload, "integrity_violation")
			return nil
		case apperrors.CategoryResourceNotFound:
			p.handled(ctx, err, payload, "config_missing")
			return nil
		default:
			return fmt.Errorf("failed to process deposit %s: %w", resolved.Key, err)
		}
	}

	metrics.NotificationsTotal.WithLabelValues("processed").Inc()
	return nil
}

// applyTransitions evaluates the state machine under the per-record lock.
// Guards are driven by the record's current state and the notification's
// status tag only; message arrival order carries no meaning.
func (p *Processor) applyTransitions(ctx context.Context, tx Tx, n *Notification, amount decimal.Decimal) error {
	d := tx.Deposit()

	if !d.Amount.Equal(amount) {
		return apperrors.ConflictError(
			fmt.Errorf("%w: recorded %s, notified %s for %s", ErrAmountMismatch, d.Amount, amount, d.Key),
			"deposit amount differs from recorded amount")
	}

	if d.State.Terminal() {
		p.logger.Debug("deposit already in terminal state, nothing to apply",
			zap.String("deposit", d.Key.String()),
			zap.String("state", string(d.State)))
		return nil
	}

	// Acceptance is evaluated as soon as the record is seen in submitted,
	// regardless of which status tag created it. A succeed tag must not let
	// a deposit bypass the minimum-amount gate.
	if d.State == StateSubmitted {
		if err := p.evaluateAcceptance(ctx, tx, d); err != nil {
			return err
		}
	}

	if d.State == StateAccepted && n.Status == StatusAMLCheck {
		p.logger.Info("deposit flagged for AML review", zap.String("deposit", d.Key.String()))
		if err := tx.UpdateState(ctx, StateAMLCheck); err != nil {
			return err
		}
		metrics.StateTransitions.WithLabelValues(string(StateAMLCheck)).Inc()
	}

	if (d.State == StateAccepted || d.State == StateAMLCheck) && n.Status == StatusSucceed {
		p.logger.Info("dispatching deposit",
			zap.String("deposit", d.Key.String()),
			zap.String("owner", d.OwnerUID),
			zap.String("amount", d.Amount.String()))
		if err := p.ledger.Credit(ctx, d); err != nil {
			return fmt.Errorf("ledger credit failed for %s: %w", d.Key, err)
		}
		if err := tx.UpdateState(ctx, StateDispatched); err != nil {
			return err
		}
		metrics.StateTransitions.WithLabelValues(string(StateDispatched)).Inc()
	}

	return nil
}

// evaluateAcceptance applies the minimum-amount policy to a submitted record.
func (p *Processor) evaluateAcceptance(ctx context.Context, tx Tx, d *Deposit) error {
	minimum, err := p.minimums.MinDepositAmount(ctx, d.BlockchainKey, d.CurrencyID)
	if err != nil {
		if errors.Is(err, ErrMinimumNotConfigured) {
			return apperrors.ResourceNotFoundError(
				fmt.Errorf("minimum deposit amount for %s/%s: %w", d.BlockchainKey, d.CurrencyID, err),
				"minimum deposit amount not configured")
		}
		return fmt.Errorf("failed to look up minimum deposit amount for %s/%s: %w", d.BlockchainKey, d.CurrencyID, err)
	}

	decision := DecideAcceptance(d.Amount, minimum)
	if !decision.Accept {
		p.logger.Warn("skipping deposit below minimum",
			zap.String("deposit", d.Key.String()),
			zap.String("reason", decision.SkipReason))
		if err := tx.UpdateState(ctx, StateSkipped); err != nil {
			return err
		}
		if err := tx.AppendError(ctx, decision.SkipReason); err != nil {
			return err
		}
		metrics.StateTransitions.WithLabelValues(string(StateSkipped)).Inc()
		return nil
	}

	p.logger.Info("accepting deposit", zap.String("deposit", d.Key.String()))
	if err := tx.UpdateState(ctx, StateAccepted); err != nil {
		return err
	}
	metrics.StateTransitions.WithLabelValues(string(StateAccepted)).Inc()
	return nil
}

// handled reports a taxonomy error with the offending payload attached and
// records the outcome. The message is dropped, not retried.
func (p *Processor) handled(ctx context.Context, err error, payload []byte, outcome string) {
	p.reporter.Report(ctx, err, payload)
	metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
}
