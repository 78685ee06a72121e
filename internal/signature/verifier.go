package signature

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verify checks an EIP-191 personal message signature against the claimed
// signer address. Address comparison is case-insensitive. Malformed input
// yields false, never an error: a bad signature is an auth failure, not a
// server fault.
func Verify(message, sig, claimedAddress string) bool {
	if !common.IsHexAddress(claimedAddress) {
		return false
	}

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return false
	}

	// Wallets emit v as 27/28, crypto.SigToPub expects 0/1.
	if sigBytes[crypto.RecoveryIDOffset] >= 27 {
		sigBytes[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sigBytes)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), claimedAddress)
}

// NormalizeAddress returns the checksummed form of a hex address, or ""
// if the input is not an address.
func NormalizeAddress(address string) string {
	if !common.IsHexAddress(address) {
		return ""
	}
	return common.HexToAddress(address).Hex()
}
