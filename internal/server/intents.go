package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	"github.com/payitonchain/paygate/internal/signature"
)

type createIntentRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	Token      string `json:"token"`
	ChainID    int64  `json:"chainId"`
	ExtID      string `json:"extId"`
	MerchantID string `json:"merchantId"`
	Signature  string `json:"signature"`
}

func (s *Server) CreateIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	merchantID, err := snowflake.ParseString(strings.TrimSpace(req.MerchantID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// The payer signs over the intent fields themselves; a signature built
	// over different values recovers a different message and fails.
	message := signature.CreateIntentMessage(req.To, req.Amount, req.Token, req.ChainID, req.ExtID)
	if !signature.Verify(message, req.Signature, req.From) {
		AbortWithError(c, ErrBadSignature)
		return
	}

	ctx := c.Request.Context()
	if _, err := s.merchants.GetByID(ctx, merchantID); err != nil {
		AbortWithError(c, err)
		return
	}

	intent, err := s.intents.Create(ctx, intentdomain.CreateIntentRequest{
		From:       req.From,
		To:         req.To,
		Amount:     req.Amount,
		Token:      req.Token,
		ChainID:    req.ChainID,
		ExtID:      req.ExtID,
		MerchantID: merchantID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}

type cancelIntentRequest struct {
	From      string `json:"from"`
	Signature string `json:"signature"`
}

func (s *Server) CancelIntent(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req cancelIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	message := signature.CancelIntentMessage(id.String())
	if !signature.Verify(message, req.Signature, req.From) {
		AbortWithError(c, ErrBadSignature)
		return
	}

	intent, err := s.intents.Cancel(c.Request.Context(), id, req.From)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// GetIntent serves status polling for payers that do not hold a live
// stream open. Only the intent's own payer may read it.
func (s *Server) GetIntent(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	claims := claimsFrom(c)
	if claims == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	intent, err := s.intents.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !strings.EqualFold(intent.From, claims.Address) {
		AbortWithError(c, ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, intent)
}

func (s *Server) ListMerchantPayments(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 50)

	intents, err := s.intents.ListByMerchant(c.Request.Context(), intentdomain.ListByMerchantRequest{
		MerchantID: claims.MerchantID,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": intents,
		"page":     page,
		"perPage":  perPage,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
