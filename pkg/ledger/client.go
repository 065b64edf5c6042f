// Package ledger talks to the accounting service that credits member
// balances for dispatched deposits.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradepoint/deposit-gateway/pkg/config"
	"github.com/tradepoint/deposit-gateway/pkg/deposit"
)

// creditRequest is the wire format of a ledger credit call. Reference keeps
// the call idempotent on the ledger side.
type creditRequest struct {
	Reference     string `json:"reference"`
	OwnerUID      string `json:"owner_uid"`
	BlockchainKey string `json:"blockchain_key"`
	CurrencyID    string `json:"currency_id"`
	Amount        string `json:"amount"`
	TxID          string `json:"txid"`
	TxOut         int    `json:"txout"`
}

// Client implements deposit.LedgerCredit over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(cfg *config.LedgerConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Credit asks the ledger to credit the deposit owner's balance. A non-2xx
// response is an error; the caller decides whether the message is retried.
func (c *Client) Credit(ctx context.Context, d *deposit.Deposit) error {
	body, err := json.Marshal(creditRequest{
		Reference:     d.Key.String(),
		OwnerUID:      d.OwnerUID,
		BlockchainKey: d.BlockchainKey,
		CurrencyID:    d.CurrencyID,
		Amount:        d.Amount.String(),
		TxID:          d.TxID,
		TxOut:         d.TxOut,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/credits", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build credit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger credit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger credit rejected with status %d: %s", resp.StatusCode, detail)
	}

	c.logger.Info("credited deposit on ledger",
		zap.String("deposit", d.Key.String()),
		zap.String("owner", d.OwnerUID),
		zap.String("amount", d.Amount.String()))
	return nil
}
