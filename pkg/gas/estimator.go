// Package gas estimates the total gas needed to sweep a batch of token and
// native transfers from one account, using live simulation in development and
// operator-configured limits in production.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradepoint/deposit-gateway/internal/metrics"
)

// NativeKey indexes the configured gas limit for the chain's base asset.
const NativeKey = "native"

// simulationAmount is the nominal value used for simulated transfers.
var simulationAmount = big.NewInt(1)

var (
	// ErrNoTargets means the request named no contracts and no native
	// transfer, a caller error.
	ErrNoTargets = errors.New("no contract addresses and no native transfer")

	// ErrUnknownGasLimit means a required configured limit is missing.
	// Estimation must fail rather than default to zero gas.
	ErrUnknownGasLimit = errors.New("unknown gas limit")

	// ErrInsufficientFunds is raised by simulation when the sending account
	// cannot cover the simulated transfer.
	ErrInsufficientFunds = errors.New("insufficient funds for simulation")

	// ErrExecutionReverted is raised when the simulated call reverts.
	ErrExecutionReverted = errors.New("execution reverted")
)

// FeeOracle supplies the current network gas price.
type FeeOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// SimulationClient performs live gas estimation against a node.
type SimulationClient interface {
	EstimateTokenTransfer(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error)
	EstimateNativeTransfer(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error)
}

// Request describes one estimation call.
type Request struct {
	From               common.Address
	To                 common.Address
	ContractAddresses  []common.Address
	AccountNative      bool
	GasLimits          map[string]uint64
	GasPrice           *big.Int
	GasPriceMultiplier float64
	Strict             bool
}

// Estimate is the result of an estimation call.
type Estimate struct {
	GasPrice *big.Int
	TotalGas uint64
}

// Estimator aggregates per-transfer gas estimates.
type Estimator struct {
	oracle FeeOracle
	sim    SimulationClient
	logger *zap.Logger
}

func NewEstimator(oracle FeeOracle, sim SimulationClient, logger *zap.Logger) *Estimator {
	return &Estimator{oracle: oracle, sim: sim, logger: logger}
}

// Estimate computes the total gas units for transferring every listed
// contract token, plus optionally the native asset, from req.From to req.To.
func (e *Estimator) Estimate(ctx context.Context, req Request) (est *Estimate, err error) {
	mode := "simulated"
	if req.Strict {
		mode = "strict"
	}
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.GasEstimationsTotal.WithLabelValues(mode, result).Inc()
	}()

	contracts := req.ContractAddresses
	if len(contracts) == 0 && !req.AccountNative {
		return nil, ErrNoTargets
	}

	gasPrice, err := e.resolveGasPrice(ctx, req)
	if err != nil {
		return nil, err
	}

	var total uint64
	for _, contract := range contracts {
		units, err := e.contractGas(ctx, req, contract, gasPrice)
		if err != nil {
			return nil, err
		}
		total += units
	}

	if req.AccountNative {
		units, err := e.nativeGas(ctx, req, gasPrice)
		if err != nil {
			return nil, err
		}
		total += units
	}

	e.logger.Info("estimated gas",
		zap.Stringer("from", req.From),
		zap.Stringer("to", req.To),
		zap.Int("contracts", len(contracts)),
		zap.Bool("account_native", req.AccountNative),
		zap.Stringer("gas_price", gasPrice),
		zap.Uint64("total_gas", total))
	metrics.GasEstimated.Observe(float64(total))

	return &Estimate{GasPrice: gasPrice, TotalGas: total}, nil
}

// resolveGasPrice prefers the caller-supplied price; otherwise it queries the
// oracle and applies the safety multiplier, truncating toward zero. The
// multiplier is applied here exactly once, never per contract.
func (e *Estimator) resolveGasPrice(ctx context.Context, req Request) (*big.Int, error) {
	if req.GasPrice != nil {
		return req.GasPrice, nil
	}

	price, err := e.oracle.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	multiplier := req.GasPriceMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	scaled := decimal.NewFromBigInt(price, 0).Mul(decimal.NewFromFloat(multiplier))
	return scaled.BigInt(), nil
}

func (e *Estimator) contractGas(ctx context.Context, req Request, contract common.Address, gasPrice *big.Int) (uint64, error) {
	key := limitKey(contract)
	if req.Strict {
		return e.configuredLimit(req, key)
	}

	units, err := e.sim.EstimateTokenTransfer(ctx, req.From, contract, req.To, gasPrice)
	if err == nil {
		return units, nil
	}
	if recoverable(err) {
		e.logger.Warn("token transfer simulation failed, falling back to configured limit",
			zap.String("contract", key), zap.Error(err))
		return e.configuredLimit(req, key)
	}
	return 0, fmt.Errorf("failed to simulate token transfer for %s: %w", key, err)
}

func (e *Estimator) nativeGas(ctx context.Context, req Request, gasPrice *big.Int) (uint64, error) {
	if req.Strict {
		return e.configuredLimit(req, NativeKey)
	}

	units, err := e.sim.EstimateNativeTransfer(ctx, req.From, req.To, gasPrice)
	if err == nil {
		return units, nil
	}
	if recoverable(err) {
		e.logger.Warn("native transfer simulation failed, falling back to configured limit", zap.Error(err))
		return e.configuredLimit(req, NativeKey)
	}
	return 0, fmt.Errorf("failed to simulate native transfer: %w", err)
}

func (e *Estimator) configuredLimit(req Request, key string) (uint64, error) {
	limit, ok := req.GasLimits[key]
	if !ok {
		return 0, fmt.Errorf("%w for %s", ErrUnknownGasLimit, key)
	}
	return limit, nil
}

// recoverable reports whether a simulation failure may fall back to a
// configured limit. Timeouts count: a node that cannot answer in time must
// not block estimation when a static limit exists.
func recoverable(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrExecutionReverted) ||
		errors.Is(err, context.DeadlineExceeded)
}

func limitKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
