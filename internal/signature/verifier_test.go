package signature

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, message string) ([]byte, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)

	return sig, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestVerify(t *testing.T) {
	message := ClientLoginMessage("0x1111111111111111111111111111111111111111", "nonce-1")
	sig, addr := signMessage(t, message)

	assert.True(t, Verify(message, hexutil.Encode(sig), addr))
	assert.True(t, Verify(message, hexutil.Encode(sig), strings.ToLower(addr)), "address comparison is case-insensitive")
	assert.False(t, Verify(message+"x", hexutil.Encode(sig), addr), "different message recovers a different signer")
	assert.False(t, Verify(message, hexutil.Encode(sig), "0x2222222222222222222222222222222222222222"))
}

func TestVerifyLegacyRecoveryID(t *testing.T) {
	message := MerchantLoginMessage("0x1111111111111111111111111111111111111111", "nonce-2")
	sig, addr := signMessage(t, message)

	// Wallets typically return v as 27/28 instead of 0/1.
	sig[crypto.RecoveryIDOffset] += 27
	assert.True(t, Verify(message, hexutil.Encode(sig), addr))
}

func TestVerifyMalformedInput(t *testing.T) {
	message := CancelIntentMessage("42")
	sig, addr := signMessage(t, message)

	assert.False(t, Verify(message, "", addr))
	assert.False(t, Verify(message, "0xzz", addr))
	assert.False(t, Verify(message, "0xdeadbeef", addr), "short signature")
	assert.False(t, Verify(message, hexutil.Encode(sig), "not-an-address"))
	assert.False(t, Verify(message, hexutil.Encode(sig), ""))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "", NormalizeAddress("nope"))

	lower := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	normalized := NormalizeAddress(lower)
	assert.True(t, strings.EqualFold(lower, normalized))
	assert.Equal(t, normalized, NormalizeAddress(normalized))
}
