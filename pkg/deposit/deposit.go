// Package deposit contains the deposit domain model and the ingestion state
// machine that advances each deposit through confirmation and acceptance
// exactly once.
package deposit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State represents the lifecycle state of a deposit record.
type State string

const (
	StateSubmitted  State = "submitted"
	StateAccepted   State = "accepted"
	StateAMLCheck   State = "aml_check"
	StateSkipped    State = "skipped"
	StateDispatched State = "dispatched"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateDispatched
}

// CanTransition reports whether the state machine permits moving from one
// state to another. Records are never moved backwards.
func CanTransition(from, to State) bool {
	switch from {
	case StateSubmitted:
		return to == StateAccepted || to == StateSkipped
	case StateAccepted:
		return to == StateAMLCheck || to == StateDispatched
	case StateAMLCheck:
		return to == StateDispatched
	default:
		return false
	}
}

// Key is the natural key of a deposit. Redelivery of the same notification
// always resolves to the same key, which makes it the idempotency anchor for
// the whole ingestion path.
type Key struct {
	BlockchainKey string `json:"blockchain_key"`
	CurrencyID    string `json:"currency_id"`
	TxID          string `json:"txid"`
	TxOut         int    `json:"txout"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s:%d", k.BlockchainKey, k.CurrencyID, k.TxID, k.TxOut)
}

// Deposit is the durable record of one on-chain deposit output. The amount is
// set at creation and never changes; all later mutation goes through state
// transitions under the per-record lock.
type Deposit struct {
	Key

	OwnerUID      string          `json:"owner_uid"`
	Address       string          `json:"address"`
	Amount        decimal.Decimal `json:"amount"`
	FromAddresses []string        `json:"from_addresses"`
	BlockNumber   int64           `json:"block_number"`
	State         State           `json:"state"`
	// Errors is the append-only log of skip and failure reasons.
	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
