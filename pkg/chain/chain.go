// Package chain holds read-only blockchain reference data shared by the
// ingestion pipeline and the gas estimator.
package chain

import (
	"errors"
	"fmt"

	"github.com/tradepoint/deposit-gateway/pkg/config"
)

// ErrUnknownChain is returned when a notification references a chain the
// gateway is not configured for.
var ErrUnknownChain = errors.New("unknown chain")

// AddressType selects the address canonicalization rule for a chain.
type AddressType string

const (
	// AddressTypeEthereum is for account-based chains with 0x hex addresses.
	AddressTypeEthereum AddressType = "ethereum"
	// AddressTypeGeneric is for chains whose addresses are compared verbatim.
	AddressTypeGeneric AddressType = "generic"
)

// Chain describes one blockchain known to the gateway.
type Chain struct {
	Key         string
	AddressType AddressType
}

// Registry resolves chain keys to chain descriptors. It is built once from
// configuration and safe for concurrent reads.
type Registry struct {
	chains map[string]Chain
}

// NewRegistry builds a registry from configuration.
func NewRegistry(cfgs []config.ChainConfig) (*Registry, error) {
	chains := make(map[string]Chain, len(cfgs))
	for _, c := range cfgs {
		at := AddressType(c.AddressType)
		switch at {
		case AddressTypeEthereum, AddressTypeGeneric:
		default:
			return nil, fmt.Errorf("chain %q: unsupported address type %q", c.Key, c.AddressType)
		}
		if _, dup := chains[c.Key]; dup {
			return nil, fmt.Errorf("chain %q configured twice", c.Key)
		}
		chains[c.Key] = Chain{Key: c.Key, AddressType: at}
	}
	return &Registry{chains: chains}, nil
}

// Get returns the chain for the given key, or ErrUnknownChain.
func (r *Registry) Get(key string) (Chain, error) {
	c, ok := r.chains[key]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %s", ErrUnknownChain, key)
	}
	return c, nil
}
