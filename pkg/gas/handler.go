package gas

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/tradepoint/deposit-gateway/pkg/app/errors"
	"github.com/tradepoint/deposit-gateway/pkg/config"
)

// EstimateRequest is the JSON body of the estimation endpoint. Gas limits,
// multiplier and strictness come from server configuration, not the caller.
type EstimateRequest struct {
	From              string   `json:"from"`
	To                string   `json:"to"`
	ContractAddresses []string `json:"contract_addresses"`
	AccountNative     bool     `json:"account_native"`
	GasPrice          string   `json:"gas_price,omitempty"`
}

// EstimateResponse is the JSON result of the estimation endpoint.
type EstimateResponse struct {
	GasPrice string `json:"gas_price"`
	TotalGas uint64 `json:"total_gas"`
}

// EstimateHandler serves gas estimation over HTTP for operator tooling and
// the consolidation workflow.
func EstimateHandler(est *Estimator, cfg *config.EthereumConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body EstimateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apperrors.HTTPError(w, apperrors.BadDataError(err, "malformed estimation request"))
			return
		}

		req, err := body.toRequest(cfg)
		if err != nil {
			apperrors.HTTPError(w, apperrors.BadDataError(err, err.Error()))
			return
		}

		result, err := est.Estimate(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoTargets):
				err = apperrors.BadDataError(err, "no transfer targets")
			case errors.Is(err, ErrUnknownGasLimit):
				err = apperrors.ResourceNotFoundError(err, "gas limit not configured")
			default:
				err = apperrors.DependencyError(err, "gas estimation failed")
			}
			if apperrors.Is(err, apperrors.CategoryDependencyFailure) {
				logger.Error("gas estimation failed", zap.Error(err))
			}
			apperrors.HTTPError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(EstimateResponse{
			GasPrice: result.GasPrice.String(),
			TotalGas: result.TotalGas,
		}); err != nil {
			logger.Error("failed to write estimation response", zap.Error(err))
		}
	}
}

func (b EstimateRequest) toRequest(cfg *config.EthereumConfig) (Request, error) {
	if !common.IsHexAddress(b.From) {
		return Request{}, fmt.Errorf("invalid from address %q", b.From)
	}
	if !common.IsHexAddress(b.To) {
		return Request{}, fmt.Errorf("invalid to address %q", b.To)
	}

	contracts := make([]common.Address, 0, len(b.ContractAddresses))
	for _, addr := range b.ContractAddresses {
		if !common.IsHexAddress(addr) {
			return Request{}, fmt.Errorf("invalid contract address %q", addr)
		}
		contracts = append(contracts, common.HexToAddress(addr))
	}

	req := Request{
		From:               common.HexToAddress(b.From),
		To:                 common.HexToAddress(b.To),
		ContractAddresses:  contracts,
		AccountNative:      b.AccountNative,
		GasLimits:          cfg.GasLimits,
		GasPriceMultiplier: cfg.GasPriceMultiplier,
		Strict:             cfg.Strict,
	}

	if b.GasPrice != "" {
		price, ok := new(big.Int).SetString(b.GasPrice, 10)
		if !ok || price.Sign() <= 0 {
			return Request{}, fmt.Errorf("invalid gas price %q", b.GasPrice)
		}
		req.GasPrice = price
	}
	return req, nil
}
