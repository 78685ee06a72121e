package auth

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/payitonchain/paygate/internal/config"
	"go.uber.org/fx"
)

const (
	// KindMerchant tokens authorize the merchant dashboard surface.
	KindMerchant = "merchant"
	// KindClient tokens authorize payer-facing routes.
	KindClient = "client"
)

var ErrInvalidToken = errors.New("invalid_token")

// Claims is the session payload carried in a signed bearer token. Address
// is always the checksummed wallet that proved key ownership; MerchantID
// is set only on merchant sessions.
type Claims struct {
	Kind       string       `json:"kind"`
	Address    string       `json:"addr"`
	MerchantID snowflake.ID `json:"mid,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens. Sessions are
// stateless: expiry is the only revocation mechanism.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(cfg config.Config) *TokenService {
	return &TokenService{
		secret: []byte(cfg.AuthJWTSecret),
		ttl:    cfg.SessionTTL,
	}
}

func (s *TokenService) IssueMerchant(merchantID snowflake.ID, address string) (string, error) {
	return s.issue(Claims{
		Kind:       KindMerchant,
		Address:    address,
		MerchantID: merchantID,
	})
}

func (s *TokenService) IssueClient(address string) (string, error) {
	return s.issue(Claims{
		Kind:    KindClient,
		Address: address,
	})
}

func (s *TokenService) issue(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies the signature and expiry and returns the session claims.
func (s *TokenService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != KindMerchant && claims.Kind != KindClient {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

var Module = fx.Module("auth",
	fx.Provide(NewTokenService),
)
