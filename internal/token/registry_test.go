package token

import (
	"testing"

	"github.com/payitonchain/paygate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdcAddr = "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"
	wethAddr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

func TestRegistryDecimals(t *testing.T) {
	r := NewRegistry(config.Config{
		TokenDecimals:        usdcAddr + ":6," + wethAddr + ":18",
		DefaultTokenDecimals: 6,
	})

	assert.Equal(t, int32(6), r.Decimals(usdcAddr))
	assert.Equal(t, int32(18), r.Decimals(wethAddr))
	// lookup is case-insensitive
	assert.Equal(t, int32(18), r.Decimals("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"))
	// unknown tokens fall back to the default
	assert.Equal(t, int32(6), r.Decimals("0xCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCc"))
}

func TestRegistryIgnoresMalformedEntries(t *testing.T) {
	r := NewRegistry(config.Config{
		TokenDecimals:        "bogus, " + usdcAddr + ":notanumber, " + wethAddr + ":18",
		DefaultTokenDecimals: 6,
	})

	assert.Equal(t, int32(6), r.Decimals(usdcAddr))
	assert.Equal(t, int32(18), r.Decimals(wethAddr))
}

func TestNormalizeRaw(t *testing.T) {
	got, err := NormalizeRaw("1500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got)

	got, err = NormalizeRaw("1000000000000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = NormalizeRaw("42", 0)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	// raw amounts must be non-negative integers
	for _, raw := range []string{"", "1.5", "-1", "abc"} {
		_, err := NormalizeRaw(raw, 6)
		assert.ErrorIs(t, err, ErrInvalidAmount, raw)
	}
}

func TestCanonical(t *testing.T) {
	for _, in := range []string{"1", "1.0", "1.000000"} {
		got, err := Canonical(in)
		require.NoError(t, err)
		assert.Equal(t, "1", got, in)
	}

	got, err := Canonical("0.10")
	require.NoError(t, err)
	assert.Equal(t, "0.1", got)

	_, err = Canonical("-1")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Canonical("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
