package application

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validKey = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"

func TestLoadKeys_AcceptedFormsAndNormalization(t *testing.T) {
	upper := strings.ToUpper(validKey)
	input := strings.Join([]string{
		"0x" + validKey,  // prefixed
		"not-a-key",      // rejected
		upper,            // bare 64 hex, upper case
		"0x" + validKey,  // duplicate of the first after normalization
	}, "\n")

	keys, err := LoadKeys(strings.NewReader(input))
	require.NoError(t, err)

	// upper normalizes to the same key as line 1, so only one entry survives.
	assert.Equal(t, []string{"0x" + validKey}, keys)
}

func TestLoadKeys_DistinctKeysPreserveOrder(t *testing.T) {
	second := strings.Replace(validKey, "a665", "b775", 1)
	input := "0x" + validKey + "\r\n" + second + "\r\n\r\n"

	keys, err := LoadKeys(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x" + validKey, "0x" + second}, keys)
}

func TestLoadKeys_TrimsWhitespace(t *testing.T) {
	keys, err := LoadKeys(strings.NewReader("   0x" + validKey + "   \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x" + validKey}, keys)
}

func TestLoadKeys_SixtySixBareHex(t *testing.T) {
	key66 := validKey + "ab"
	keys, err := LoadKeys(strings.NewReader(key66))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x" + key66}, keys)
}

func TestLoadKeys_NoValidLines(t *testing.T) {
	_, err := LoadKeys(strings.NewReader("hello\nworld\n\n"))
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestLoadKeys_CapsAtMaxKeys(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxKeys+20; i++ {
		fmt.Fprintf(&b, "%064x\n", i+1)
	}

	keys, err := LoadKeys(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Len(t, keys, MaxKeys)
	assert.Equal(t, fmt.Sprintf("0x%064x", 1), keys[0])
}
