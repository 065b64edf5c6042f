package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress returns the canonical form of an address for equality
// comparison and storage. Account-based 0x addresses are case-folded through
// their 20-byte representation; generic addresses pass through unchanged.
func (c Chain) NormalizeAddress(address string) string {
	if c.AddressType != AddressTypeEthereum {
		return address
	}
	if !common.IsHexAddress(address) {
		// Malformed addresses are kept verbatim so the record preserves what
		// the watcher actually sent.
		return strings.ToLower(address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex())
}

// NormalizeAddresses normalizes a slice of addresses, preserving order.
func (c Chain) NormalizeAddresses(addresses []string) []string {
	out := make([]string, len(addresses))
	for i, a := range addresses {
		out[i] = c.NormalizeAddress(a)
	}
	return out
}
