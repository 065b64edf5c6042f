package gas

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tradepoint/deposit-gateway/pkg/config"
)

// transferSelector is the 4-byte selector of transfer(address,uint256).
var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// EthereumClient implements FeeOracle and SimulationClient against an
// Ethereum node.
type EthereumClient struct {
	client     *ethclient.Client
	simTimeout time.Duration
}

// NewEthereumClient connects to the node at cfg.RPCURL.
func NewEthereumClient(cfg *config.EthereumConfig) (*EthereumClient, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}
	return &EthereumClient{client: client, simTimeout: cfg.SimulationTimeout}, nil
}

// Close closes the underlying RPC connection.
func (c *EthereumClient) Close() {
	c.client.Close()
}

// SuggestGasPrice returns the node's current recommended gas price.
func (c *EthereumClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

// EstimateTokenTransfer simulates an ERC-20 transfer of a nominal amount to
// the recipient and returns the gas it would consume.
func (c *EthereumClient) EstimateTokenTransfer(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	units, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &contract,
		GasPrice: gasPrice,
		Data:     transferCalldata(recipient, simulationAmount),
	})
	if err != nil {
		return 0, classify(err)
	}
	return units, nil
}

// EstimateNativeTransfer simulates a plain value transfer of a nominal
// amount and returns the gas it would consume.
func (c *EthereumClient) EstimateNativeTransfer(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	units, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    simulationAmount,
	})
	if err != nil {
		return 0, classify(err)
	}
	return units, nil
}

func (c *EthereumClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.simTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.simTimeout)
}

// classify maps node error strings onto the estimator's failure classes.
// Geth returns these as plain RPC error messages.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %v", ErrExecutionReverted, err)
	default:
		return err
	}
}

func transferCalldata(recipient common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
