package deposit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_Owner(t *testing.T) {
	n := Notification{OwnerID: "user:UID001"}
	kind, uid := n.Owner()
	assert.Equal(t, "user", kind)
	assert.Equal(t, "UID001", uid)

	n.OwnerID = "wallet:hot-1"
	kind, uid = n.Owner()
	assert.Equal(t, "wallet", kind)
	assert.Equal(t, "hot-1", uid)

	n.OwnerID = "user"
	kind, uid = n.Owner()
	assert.Equal(t, "user", kind)
	assert.Empty(t, uid)

	// uid may itself contain a colon
	n.OwnerID = "user:a:b"
	_, uid = n.Owner()
	assert.Equal(t, "a:b", uid)
}

func TestNotification_Validate(t *testing.T) {
	n := Notification{
		OwnerID:       "user:UID001",
		BlockchainKey: "eth-mainnet",
		CurrencyID:    "usdt",
		FromAddresses: []string{"0xfff"},
		ToAddress:     "0xabc",
		Amount:        "1",
		TxID:          "0xdeadbeef",
		BlockNumber:   "1",
		Status:        StatusSubmitted,
	}
	require.NoError(t, n.Validate())

	missing := n
	missing.FromAddresses = nil
	require.Error(t, missing.Validate())

	missing = n
	missing.Status = ""
	require.Error(t, missing.Validate())
}

func TestNotification_ParseBlockNumber(t *testing.T) {
	n := Notification{BlockNumber: "18000000"}
	bn, err := n.ParseBlockNumber()
	require.NoError(t, err)
	assert.Equal(t, int64(18000000), bn)

	n.BlockNumber = "-1"
	_, err = n.ParseBlockNumber()
	require.Error(t, err)

	n.BlockNumber = "best"
	_, err = n.ParseBlockNumber()
	require.Error(t, err)
}
