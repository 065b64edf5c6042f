package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testFrom      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTo        = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testContractA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testContractB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestEstimate_StrictAggregatesConfiguredLimits(t *testing.T) {
	sim := &MockSimulationClient{
		EstimateTokenTransferFunc: func(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
			t.Fatal("strict mode must not simulate")
			return 0, nil
		},
	}
	est := NewEstimator(&MockFeeOracle{}, sim, zap.NewNop())

	result, err := est.Estimate(context.Background(), Request{
		From:              testFrom,
		To:                testTo,
		ContractAddresses: []common.Address{testContractA, testContractB},
		AccountNative:     true,
		GasLimits: map[string]uint64{
			limitKey(testContractA): 21000,
			limitKey(testContractB): 65000,
			NativeKey:               21000,
		},
		GasPrice: big.NewInt(50),
		Strict:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(107000), result.TotalGas)
	assert.Equal(t, big.NewInt(50), result.GasPrice)
}

func TestEstimate_StrictUnknownContract(t *testing.T) {
	est := NewEstimator(&MockFeeOracle{}, &MockSimulationClient{}, zap.NewNop())

	_, err := est.Estimate(context.Background(), Request{
		From:              testFrom,
		To:                testTo,
		ContractAddresses: []common.Address{testContractA},
		GasLimits:         map[string]uint64{},
		GasPrice:          big.NewInt(1),
		Strict:            true,
	})
	require.ErrorIs(t, err, ErrUnknownGasLimit)
}

func TestEstimate_NoTargets(t *testing.T) {
	est := NewEstimator(&MockFeeOracle{}, &MockSimulationClient{}, zap.NewNop())

	_, err := est.Estimate(context.Background(), Request{
		From:     testFrom,
		To:       testTo,
		GasPrice: big.NewInt(1),
	})
	require.ErrorIs(t, err, ErrNoTargets)
}

func TestEstimate_MultiplierTruncatesOnce(t *testing.T) {
	oracle := &MockFeeOracle{
		SuggestGasPriceFunc: func(ctx context.Context) (*big.Int, error) {
			return big.NewInt(10), nil
		},
	}
	var seenPrices []*big.Int
	sim := &MockSimulationClient{
		EstimateTokenTransferFunc: func(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
			seenPrices = append(seenPrices, gasPrice)
			return 30000, nil
		},
	}
	est := NewEstimator(oracle, sim, zap.NewNop())

	result, err := est.Estimate(context.Background(), Request{
		From:               testFrom,
		To:                 testTo,
		ContractAddresses:  []common.Address{testContractA, testContractB},
		GasPriceMultiplier: 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(15), result.GasPrice)
	assert.Equal(t, uint64(60000), result.TotalGas)
	// Scaled price reaches the simulation unchanged for every contract.
	require.Len(t, seenPrices, 2)
	for _, p := range seenPrices {
		assert.Equal(t, big.NewInt(15), p)
	}
}

func TestEstimate_CallerPriceSkipsOracleAndMultiplier(t *testing.T) {
	oracle := &MockFeeOracle{
		SuggestGasPriceFunc: func(ctx context.Context) (*big.Int, error) {
			t.Fatal("oracle must not be queried when a price is supplied")
			return nil, nil
		},
	}
	sim := &MockSimulationClient{
		EstimateNativeTransferFunc: func(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error) {
			return 21000, nil
		},
	}
	est := NewEstimator(oracle, sim, zap.NewNop())

	result, err := est.Estimate(context.Background(), Request{
		From:               testFrom,
		To:                 testTo,
		AccountNative:      true,
		GasPrice:           big.NewInt(100),
		GasPriceMultiplier: 2.0,
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), result.GasPrice)
	assert.Equal(t, uint64(21000), result.TotalGas)
}

func TestEstimate_FallbackOnInsufficientFunds(t *testing.T) {
	sim := &MockSimulationClient{
		EstimateTokenTransferFunc: func(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
			return 0, ErrInsufficientFunds
		},
	}
	est := NewEstimator(&MockFeeOracle{}, sim, zap.NewNop())

	result, err := est.Estimate(context.Background(), Request{
		From:              testFrom,
		To:                testTo,
		ContractAddresses: []common.Address{testContractA},
		GasLimits:         map[string]uint64{limitKey(testContractA): 90000},
		GasPrice:          big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(90000), result.TotalGas)
}

func TestEstimate_FallbackOnRevertWithoutLimit(t *testing.T) {
	sim := &MockSimulationClient{
		EstimateTokenTransferFunc: func(ctx context.Context, from, contract, recipient common.Address, gasPrice *big.Int) (uint64, error) {
			return 0, ErrExecutionReverted
		},
	}
	est := NewEstimator(&MockFeeOracle{}, sim, zap.NewNop())

	_, err := est.Estimate(context.Background(), Request{
		From:              testFrom,
		To:                testTo,
		ContractAddresses: []common.Address{testContractA},
		GasLimits:         map[string]uint64{},
		GasPrice:          big.NewInt(1),
	})
	require.ErrorIs(t, err, ErrUnknownGasLimit)
}

func TestEstimate_UnexpectedSimulationErrorPropagates(t *testing.T) {
	boom := errors.New("node unavailable")
	sim := &MockSimulationClient{
		EstimateNativeTransferFunc: func(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error) {
			return 0, boom
		},
	}
	est := NewEstimator(&MockFeeOracle{}, sim, zap.NewNop())

	_, err := est.Estimate(context.Background(), Request{
		From:          testFrom,
		To:            testTo,
		AccountNative: true,
		GasLimits:     map[string]uint64{NativeKey: 21000},
		GasPrice:      big.NewInt(1),
	})
	require.ErrorIs(t, err, boom)
}

func TestEstimate_TimeoutFallsBack(t *testing.T) {
	sim := &MockSimulationClient{
		EstimateNativeTransferFunc: func(ctx context.Context, from, to common.Address, gasPrice *big.Int) (uint64, error) {
			return 0, context.DeadlineExceeded
		},
	}
	est := NewEstimator(&MockFeeOracle{}, sim, zap.NewNop())

	result, err := est.Estimate(context.Background(), Request{
		From:          testFrom,
		To:            testTo,
		AccountNative: true,
		GasLimits:     map[string]uint64{NativeKey: 21000},
		GasPrice:      big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), result.TotalGas)
}

func TestTransferCalldata(t *testing.T) {
	data := transferCalldata(testTo, big.NewInt(1))
	require.Len(t, data, 68)
	assert.Equal(t, transferSelector, data[:4])
	assert.Equal(t, common.LeftPadBytes(testTo.Bytes(), 32), data[4:36])
	assert.Equal(t, byte(1), data[67])
}
