package auth

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/payitonchain/paygate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(ttl time.Duration) *TokenService {
	return NewTokenService(config.Config{AuthJWTSecret: "test-secret", SessionTTL: ttl})
}

func TestMerchantTokenRoundTrip(t *testing.T) {
	svc := newService(time.Hour)

	token, err := svc.IssueMerchant(snowflake.ID(7), "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, KindMerchant, claims.Kind)
	assert.Equal(t, snowflake.ID(7), claims.MerchantID)
	assert.Equal(t, "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa", claims.Address)
}

func TestClientTokenRoundTrip(t *testing.T) {
	svc := newService(time.Hour)

	token, err := svc.IssueClient("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, KindClient, claims.Kind)
	assert.Equal(t, snowflake.ID(0), claims.MerchantID)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := newService(-time.Minute)

	token, err := svc.IssueClient("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb")
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := newService(time.Hour).IssueClient("0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb")
	require.NoError(t, err)

	other := NewTokenService(config.Config{AuthJWTSecret: "other-secret", SessionTTL: time.Hour})
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := newService(time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
