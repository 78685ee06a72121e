package token

import (
	"errors"
	"strconv"
	"strings"

	"github.com/payitonchain/paygate/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// Registry resolves the decimal precision of token contracts. On-chain
// transfer amounts are raw integers in the token's smallest unit; intents
// store amounts in normalized units, so both sides must agree on decimals
// before tuple comparison.
type Registry struct {
	decimals map[string]int32
	def      int32
}

func NewRegistry(cfg config.Config) *Registry {
	r := &Registry{
		decimals: make(map[string]int32),
		def:      int32(cfg.DefaultTokenDecimals),
	}
	for _, entry := range strings.Split(cfg.TokenDecimals, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		dec, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil || dec < 0 {
			continue
		}
		r.decimals[strings.ToLower(strings.TrimSpace(parts[0]))] = int32(dec)
	}
	return r
}

func (r *Registry) Decimals(tokenAddr string) int32 {
	if r == nil {
		return 6
	}
	if dec, ok := r.decimals[strings.ToLower(strings.TrimSpace(tokenAddr))]; ok {
		return dec
	}
	return r.def
}

// NormalizeRaw converts a raw integer amount (smallest token unit) into the
// canonical normalized representation used for tuple matching.
func NormalizeRaw(raw string, decimals int32) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidAmount
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || !value.IsInteger() || value.IsNegative() {
		return "", ErrInvalidAmount
	}
	return value.Shift(-decimals).String(), nil
}

// Canonical reduces an amount in normalized units to its canonical string
// form so that "1.0", "1.00" and "1" compare equal.
func Canonical(amount string) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", ErrInvalidAmount
	}
	value, err := decimal.NewFromString(amount)
	if err != nil || value.IsNegative() {
		return "", ErrInvalidAmount
	}
	return value.String(), nil
}

var Module = fx.Module("token",
	fx.Provide(NewRegistry),
)
