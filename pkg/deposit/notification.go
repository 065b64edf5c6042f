package deposit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Status tags carried by deposit notifications. The acceptance decision is
// state-driven and ignores the tag; aml_check and succeed drive the
// compliance and dispatch transitions. Unknown tags are no-ops.
const (
	StatusSubmitted = "submitted"
	StatusAMLCheck  = "aml_check"
	StatusSucceed   = "succeed"
)

// OwnerKindUser marks notifications scoped to end-user accounts. The same
// transport also carries system-wallet notifications destined for a different
// consumer; those are out of scope here.
const OwnerKindUser = "user"

// Notification is one decoded deposit message from the chain watcher.
type Notification struct {
	OwnerID       string   `json:"owner_id" validate:"required"`
	BlockchainKey string   `json:"blockchain_key" validate:"required"`
	CurrencyID    string   `json:"currency" validate:"required"`
	FromAddresses []string `json:"from_addresses" validate:"required,min=1,dive,required"`
	ToAddress     string   `json:"to_address" validate:"required"`
	Amount        string   `json:"amount" validate:"required"`
	TxID          string   `json:"txid" validate:"required"`
	TxOut         int      `json:"txout" validate:"min=0"`
	BlockNumber   string   `json:"block_number" validate:"required"`
	Status        string   `json:"status" validate:"required"`
}

var validate = validator.New()

// Validate checks that all required notification fields are present.
func (n *Notification) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	return nil
}

// Key returns the natural key encoded in the notification.
func (n Notification) Key() Key {
	return Key{
		BlockchainKey: n.BlockchainKey,
		CurrencyID:    n.CurrencyID,
		TxID:          n.TxID,
		TxOut:         n.TxOut,
	}
}

// Owner splits the "<kind>:<id>" owner reference.
func (n *Notification) Owner() (kind, uid string) {
	parts := strings.SplitN(n.OwnerID, ":", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// DecimalAmount parses the exact decimal amount.
func (n *Notification) DecimalAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(n.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", n.Amount, err)
	}
	return amount, nil
}

// ParseBlockNumber parses the block number carried as an integer string.
func (n *Notification) ParseBlockNumber() (int64, error) {
	bn, err := strconv.ParseInt(n.BlockNumber, 10, 64)
	if err != nil || bn < 0 {
		return 0, fmt.Errorf("invalid block number %q", n.BlockNumber)
	}
	return bn, nil
}
