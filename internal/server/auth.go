package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/signature"
)

func (s *Server) GetNonce(c *gin.Context) {
	record, err := s.nonces.Issue(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": record.Token})
}

type merchantSignupRequest struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	WebhookURL string  `json:"webhookUrl"`
	ChainIDs   []int64 `json:"chainIds"`
	Nonce      string  `json:"nonce"`
	Signature  string  `json:"signature"`
}

type sessionResponse struct {
	Token    string                  `json:"token"`
	Address  string                  `json:"address"`
	Merchant *merchantdomain.Merchant `json:"merchant,omitempty"`
}

func (s *Server) MerchantSignup(c *gin.Context) {
	var req merchantSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	message := signature.MerchantSignupMessage(req.Address, req.Name, req.Nonce)
	if !signature.Verify(message, req.Signature, req.Address) {
		AbortWithError(c, ErrBadSignature)
		return
	}

	ctx := c.Request.Context()
	if err := s.nonces.Consume(ctx, req.Nonce); err != nil {
		AbortWithError(c, err)
		return
	}

	merchant, err := s.merchants.Create(ctx, merchantdomain.CreateMerchantRequest{
		Name:       req.Name,
		Address:    req.Address,
		WebhookURL: req.WebhookURL,
		ChainIDs:   req.ChainIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.tokens.IssueMerchant(merchant.ID, merchant.Address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Token:    token,
		Address:  merchant.Address,
		Merchant: &merchant,
	})
}

type loginRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (s *Server) MerchantLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	message := signature.MerchantLoginMessage(req.Address, req.Nonce)
	if !signature.Verify(message, req.Signature, req.Address) {
		AbortWithError(c, ErrBadSignature)
		return
	}

	ctx := c.Request.Context()
	if err := s.nonces.Consume(ctx, req.Nonce); err != nil {
		AbortWithError(c, err)
		return
	}

	merchant, err := s.merchants.GetByAddress(ctx, req.Address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.tokens.IssueMerchant(merchant.ID, merchant.Address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Token:    token,
		Address:  merchant.Address,
		Merchant: &merchant,
	})
}

type updateWebhookRequest struct {
	WebhookURL string  `json:"webhookUrl"`
	ChainIDs   []int64 `json:"chainIds"`
}

// UpdateMerchantWebhook changes the delivery endpoint and watched chains,
// the only merchant fields that may change after signup.
func (s *Server) UpdateMerchantWebhook(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	merchant, err := s.merchants.UpdateWebhook(c.Request.Context(), merchantdomain.UpdateWebhookRequest{
		ID:         claims.MerchantID,
		WebhookURL: req.WebhookURL,
		ChainIDs:   req.ChainIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, merchant)
}

func (s *Server) ClientLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	message := signature.ClientLoginMessage(req.Address, req.Nonce)
	if !signature.Verify(message, req.Signature, req.Address) {
		AbortWithError(c, ErrBadSignature)
		return
	}

	if err := s.nonces.Consume(c.Request.Context(), req.Nonce); err != nil {
		AbortWithError(c, err)
		return
	}

	address := signature.NormalizeAddress(req.Address)
	token, err := s.tokens.IssueClient(address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Token:   token,
		Address: address,
	})
}
