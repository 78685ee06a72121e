package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/payitonchain/paygate/internal/auth"
	"github.com/payitonchain/paygate/internal/config"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	intentrepo "github.com/payitonchain/paygate/internal/intent/repository"
	intentservice "github.com/payitonchain/paygate/internal/intent/service"
	"github.com/payitonchain/paygate/internal/merchant"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/nonce"
	"github.com/payitonchain/paygate/internal/notify"
	"github.com/payitonchain/paygate/internal/signature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	failures int
}

func (f *fakeSink) Enqueue(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return assert.AnError
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDedup) FirstSeen(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[hash] {
		return false, nil
	}
	f.seen[hash] = true
	return true, nil
}

func (f *fakeDedup) Forget(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, hash)
	return nil
}

type fixture struct {
	server  *Server
	nonces  *nonce.Service
	tokens  *auth.TokenService
	intents intentdomain.Service
	hub     *notify.Hub
	sink    *fakeSink
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&nonce.Nonce{}, &merchantdomain.Merchant{}, &intentdomain.PaymentIntent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := config.Config{
		AuthJWTSecret: "test-secret",
		SessionTTL:    time.Hour,
	}

	nonces := nonce.New(nonce.Params{DB: conn, Log: log})
	merchants := merchant.New(merchant.Params{DB: conn, Log: log, GenID: node})
	intents := intentservice.New(intentservice.Params{DB: conn, Log: log, GenID: node, Repo: intentrepo.Provide()})
	tokens := auth.NewTokenService(cfg)
	hub := notify.NewHub(nil)
	sink := &fakeSink{}

	engine := NewEngine(log, prometheus.NewRegistry())
	server := NewServer(ServerParams{
		Gin:       engine,
		Cfg:       cfg,
		Log:       log,
		Nonces:    nonces,
		Merchants: merchants,
		Intents:   intents,
		Tokens:    tokens,
		Transfers: sink,
		Dedup:     &fakeDedup{},
		Hub:       hub,
	})

	return &fixture{
		server:  server,
		nonces:  nonces,
		tokens:  tokens,
		intents: intents,
		hub:     hub,
		sink:    sink,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) issueNonce(t *testing.T) string {
	t.Helper()
	record, err := f.nonces.Issue(context.Background())
	require.NoError(t, err)
	return record.Token
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func (f *fixture) signupMerchant(t *testing.T, key *ecdsa.PrivateKey, address string) (merchantdomain.Merchant, string) {
	t.Helper()

	n := f.issueNonce(t)
	rec := f.do(t, http.MethodPost, "/merchants/signup", gin.H{
		"name":       "Acme",
		"address":    address,
		"webhookUrl": "https://acme.example/webhook",
		"chainIds":   []int64{10},
		"nonce":      n,
		"signature":  signMessage(t, key, signature.MerchantSignupMessage(address, "Acme", n)),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token    string                   `json:"token"`
		Merchant *merchantdomain.Merchant `json:"merchant"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Merchant)
	return *resp.Merchant, resp.Token
}

func TestGetNonce(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/nonce", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["nonce"])
}

func TestMerchantSignupAndLogin(t *testing.T) {
	f := newTestServer(t)
	key, address := newKey(t)

	m, token := f.signupMerchant(t, key, address)
	assert.NotEmpty(t, token)
	assert.Equal(t, signature.NormalizeAddress(address), m.Address)

	n := f.issueNonce(t)
	rec := f.do(t, http.MethodPost, "/merchants/login", gin.H{
		"address":   address,
		"nonce":     n,
		"signature": signMessage(t, key, signature.MerchantLoginMessage(address, n)),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMerchantSignupNonceReplayRejected(t *testing.T) {
	f := newTestServer(t)
	key, address := newKey(t)

	n := f.issueNonce(t)
	body := gin.H{
		"name":       "Acme",
		"address":    address,
		"webhookUrl": "https://acme.example/webhook",
		"chainIds":   []int64{10},
		"nonce":      n,
		"signature":  signMessage(t, key, signature.MerchantSignupMessage(address, "Acme", n)),
	}

	rec := f.do(t, http.MethodPost, "/merchants/signup", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/merchants/signup", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMerchantLoginUnknownMerchant(t *testing.T) {
	f := newTestServer(t)
	key, address := newKey(t)

	n := f.issueNonce(t)
	rec := f.do(t, http.MethodPost, "/merchants/login", gin.H{
		"address":   address,
		"nonce":     n,
		"signature": signMessage(t, key, signature.MerchantLoginMessage(address, n)),
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerchantLoginWrongSigner(t *testing.T) {
	f := newTestServer(t)
	key, _ := newKey(t)
	_, address := newKey(t)

	n := f.issueNonce(t)
	rec := f.do(t, http.MethodPost, "/merchants/login", gin.H{
		"address":   address,
		"nonce":     n,
		"signature": signMessage(t, key, signature.MerchantLoginMessage(address, n)),
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientLogin(t *testing.T) {
	f := newTestServer(t)
	key, address := newKey(t)

	n := f.issueNonce(t)
	rec := f.do(t, http.MethodPost, "/client/login", gin.H{
		"address":   address,
		"nonce":     n,
		"signature": signMessage(t, key, signature.ClientLoginMessage(address, n)),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := f.tokens.Parse(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, auth.KindClient, claims.Kind)
}

func createIntentBody(t *testing.T, key *ecdsa.PrivateKey, from string, merchantID snowflake.ID) gin.H {
	t.Helper()
	to := "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"
	tokenAddr := "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"
	message := signature.CreateIntentMessage(to, "1.5", tokenAddr, 10, "order-1")
	return gin.H{
		"from":       from,
		"to":         to,
		"amount":     "1.5",
		"token":      tokenAddr,
		"chainId":    10,
		"extId":      "order-1",
		"merchantId": merchantID.String(),
		"signature":  signMessage(t, key, message),
	}
}

func TestCreateIntent(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var intent intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))
	assert.Equal(t, intentdomain.StatusPending, intent.Status)
	assert.Equal(t, signature.NormalizeAddress(payerAddr), intent.From)

	// Ids cross the wire as strings; a JSON number would lose precision
	// past 2^53 in JS consumers.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, `"`+intent.ID.String()+`"`, string(raw["id"]))

	// Identical pending tuple conflicts.
	rec = f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateIntentSignatureOverDifferentFields(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	body := createIntentBody(t, payerKey, payerAddr, m.ID)
	body["amount"] = "999" // signed over 1.5
	rec := f.do(t, http.MethodPost, "/payment-intents", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateIntentUnknownMerchant(t *testing.T) {
	f := newTestServer(t)
	payerKey, payerAddr := newKey(t)

	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, snowflake.ID(12345)), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelIntent(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var intent intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))

	cancelPath := "/payment-intents/" + intent.ID.String() + "/cancel"
	rec = f.do(t, http.MethodPost, cancelPath, gin.H{
		"from":      payerAddr,
		"signature": signMessage(t, payerKey, signature.CancelIntentMessage(intent.ID.String())),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancelled intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, intentdomain.StatusCancelled, cancelled.Status)

	// Cancelling twice conflicts.
	rec = f.do(t, http.MethodPost, cancelPath, gin.H{
		"from":      payerAddr,
		"signature": signMessage(t, payerKey, signature.CancelIntentMessage(intent.ID.String())),
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelIntentNotOwner(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var intent intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))

	otherKey, otherAddr := newKey(t)
	rec = f.do(t, http.MethodPost, "/payment-intents/"+intent.ID.String()+"/cancel", gin.H{
		"from":      otherAddr,
		"signature": signMessage(t, otherKey, signature.CancelIntentMessage(intent.ID.String())),
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListClientPayments(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	token, err := f.tokens.IssueClient(signature.NormalizeAddress(payerAddr))
	require.NoError(t, err)
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	rec = f.do(t, http.MethodGet, "/client/payments/"+payerAddr, nil, authHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Payments []intentdomain.PaymentIntent `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Payments, 1)

	// A client token only reads its own history.
	_, otherAddr := newKey(t)
	rec = f.do(t, http.MethodGet, "/client/payments/"+otherAddr, nil, authHeader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/client/payments/"+payerAddr, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListMerchantPayments(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, merchantToken := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/payments", nil, map[string]string{
		"Authorization": "Bearer " + merchantToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Payments []intentdomain.PaymentIntent `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Payments, 1)

	// A client token is not a merchant session.
	clientToken, err := f.tokens.IssueClient(signature.NormalizeAddress(payerAddr))
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/payments", nil, map[string]string{
		"Authorization": "Bearer " + clientToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetIntent(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, _ := f.signupMerchant(t, merchantKey, merchantAddr)

	payerKey, payerAddr := newKey(t)
	rec := f.do(t, http.MethodPost, "/payment-intents", createIntentBody(t, payerKey, payerAddr, m.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	payerToken, err := f.tokens.IssueClient(signature.NormalizeAddress(payerAddr))
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/payment-intents/"+created.ID.String(), nil, map[string]string{
		"Authorization": "Bearer " + payerToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got intentdomain.PaymentIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, intentdomain.StatusPending, got.Status)

	// Another client cannot read someone else's intent.
	_, otherAddr := newKey(t)
	otherToken, err := f.tokens.IssueClient(signature.NormalizeAddress(otherAddr))
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/payment-intents/"+created.ID.String(), nil, map[string]string{
		"Authorization": "Bearer " + otherToken,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/payment-intents/"+created.ID.String(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMerchantWebhook(t *testing.T) {
	f := newTestServer(t)
	merchantKey, merchantAddr := newKey(t)
	m, merchantToken := f.signupMerchant(t, merchantKey, merchantAddr)

	headers := map[string]string{"Authorization": "Bearer " + merchantToken}

	rec := f.do(t, http.MethodPut, "/merchants/webhook", gin.H{
		"webhookUrl": "https://example.com/hooks/v2",
		"chainIds":   []int64{1, 137},
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated merchantdomain.Merchant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, m.ID, updated.ID)
	assert.Equal(t, "https://example.com/hooks/v2", updated.WebhookURL)
	assert.Equal(t, []int64{1, 137}, []int64(updated.ChainIDs))

	rec = f.do(t, http.MethodPut, "/merchants/webhook", gin.H{
		"webhookUrl": "ftp://example.com/hooks",
	}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/merchants/webhook", gin.H{
		"webhookUrl": "https://example.com/hooks/v3",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestTransfer(t *testing.T) {
	f := newTestServer(t)

	body := gin.H{
		"hash":      "0xdeadbeef",
		"from":      "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa",
		"to":        "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb",
		"amount":    "1500000",
		"token":     "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		"chainId":   10,
		"timestamp": time.Now().Unix(),
	}

	rec := f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, f.sink.payloads, 1)

	// Same hash again: deduped, nothing enqueued.
	rec = f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.sink.payloads, 1)

	body["hash"] = "0xfeedface"
	body["amount"] = "1.5"
	rec = f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.sink.payloads, 1)
}

func TestIngestTransferEnqueueFailureReleasesDedupMark(t *testing.T) {
	f := newTestServer(t)

	body := gin.H{
		"hash":      "0xflaky",
		"from":      "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa",
		"to":        "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb",
		"amount":    "1500000",
		"token":     "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		"chainId":   10,
		"timestamp": time.Now().Unix(),
	}

	f.sink.failures = 1
	rec := f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.sink.payloads)

	// The indexer retries the same hash. Nothing was queued the first
	// time, so this must be accepted, not answered as a duplicate.
	rec = f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, f.sink.payloads, 1)

	// And the mark holds again after the successful enqueue.
	rec = f.do(t, http.MethodPost, "/internal/transfers", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.sink.payloads, 1)
}
