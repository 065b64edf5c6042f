package gas

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MockFeeOracle is a mock implementation of FeeOracle
type MockFeeOracle struct {
	SuggestGasPriceFunc func(ctx context.Context) (*big.Int, error)
}

func (m *MockFeeOracle) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.SuggestGasPriceFunc != nil {
		return m.SuggestGasPriceFunc(ctx)
	}
	return big.NewInt(0), nil
}

// MockSimulationClient is a mock implementation of SimulationClient
type MockSimulationClient struct {
	EstimateTokenTransferFunc  func(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error)
	EstimateNativeTransferFunc func(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error)
}

func (m *MockSimulationClient) EstimateTokenTransfer(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
	if m.EstimateTokenTransferFunc != nil {
		return m.EstimateTokenTransferFunc(ctx, from, contract, recipient, gasPrice)
	}
	return 0, nil
}

func (m *MockSimulationClient) EstimateNativeTransfer(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error) {
	if m.EstimateNativeTransferFunc != nil {
		return m.EstimateNativeTransferFunc(ctx, from, to, gasPrice)
	}
	return 0, nil
}
