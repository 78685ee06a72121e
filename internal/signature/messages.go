package signature

import "fmt"

// Message templates signed by clients. Client and server must agree
// byte-for-byte, so these are the single source of truth for both the
// verifier and any test signer.

func MerchantSignupMessage(address, name, nonce string) string {
	return fmt.Sprintf("Register merchant account for %s with name %s and unique key: %s", address, name, nonce)
}

func MerchantLoginMessage(address, nonce string) string {
	return fmt.Sprintf("Login merchant for address %s with nonce %s", address, nonce)
}

func ClientLoginMessage(address, nonce string) string {
	return fmt.Sprintf("Login for address %s with nonce %s", address, nonce)
}

func CreateIntentMessage(to, amount, token string, chainID int64, extID string) string {
	return fmt.Sprintf("Create payment intent: to=%s amount=%s token=%s chainId=%d extId=%s", to, amount, token, chainID, extID)
}

func CancelIntentMessage(id string) string {
	return fmt.Sprintf("Cancel payment intent %s", id)
}
