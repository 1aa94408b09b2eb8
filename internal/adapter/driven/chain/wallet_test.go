package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afflictionmoney/portofarm/internal/domain/model"
)

// Private key 0x...01 has a well-known address, handy as a fixed vector.
const (
	keyOne     = "0x0000000000000000000000000000000000000000000000000000000000000001"
	addressOne = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestOwnerAddress(t *testing.T) {
	got, err := OwnerAddress(keyOne)
	require.NoError(t, err)
	assert.Equal(t, addressOne, got)
}

func TestOwnerAddress_NoPrefix(t *testing.T) {
	got, err := OwnerAddress(keyOne[2:])
	require.NoError(t, err)
	assert.Equal(t, addressOne, got)
}

func TestOwnerAddress_Invalid(t *testing.T) {
	_, err := OwnerAddress("0xnothex")
	assert.Error(t, err)

	_, err = OwnerAddress("0x1234")
	assert.Error(t, err)
}

func TestAccountAddress_Deterministic(t *testing.T) {
	txHash := "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

	first, err := AccountAddress(addressOne, 12345, txHash)
	require.NoError(t, err)
	second, err := AccountAddress(addressOne, 12345, txHash)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, common.IsHexAddress(first))
	assert.NotEqual(t, addressOne, first)
}

func TestAccountAddress_VariesWithInputs(t *testing.T) {
	txHash := "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

	base, err := AccountAddress(addressOne, 12345, txHash)
	require.NoError(t, err)

	otherBlock, err := AccountAddress(addressOne, 12346, txHash)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherBlock)

	otherHash, err := AccountAddress(addressOne, 12345, "0x"+"11"+txHash[4:])
	require.NoError(t, err)
	assert.NotEqual(t, base, otherHash)
}

func TestAccountAddress_InvalidOwner(t *testing.T) {
	_, err := AccountAddress("not-an-address", 1, "0xabc")
	assert.Error(t, err)
}

func TestActionData(t *testing.T) {
	kinds := []model.ActionKind{
		model.ActionKeyAuthorization,
		model.ActionSessionKey,
		model.ActionIntentFlow,
		model.ActionBatchExecution,
		model.ActionProtocolInteraction,
		model.ActionLiquidityProvision,
		model.ActionSwapOperation,
		model.ActionYieldFarming,
	}

	seen := make(map[string]model.ActionKind, len(kinds))
	for _, kind := range kinds {
		data, err := ActionData(addressOne, kind)
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, data)

		key := string(data[96:]) // skip the timestamp words; tag and salt differ per kind
		if prev, dup := seen[key]; dup {
			t.Fatalf("kinds %s and %s produced identical payload tails", prev, kind)
		}
		seen[key] = kind
	}
}

func TestActionData_UnknownKind(t *testing.T) {
	_, err := ActionData(addressOne, model.ActionKind("bogus"))
	assert.Error(t, err)
}
