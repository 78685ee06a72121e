package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/payitonchain/paygate/internal/auth"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/nonce"
	"github.com/payitonchain/paygate/internal/token"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	// ErrBadSignature covers every failed proof-of-key-ownership: wrong
	// signer, garbage signature, or a message built over different fields.
	ErrBadSignature = errors.New("invalid_signature")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isAuthFailure(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "auth_failure",
			Message: "authentication failed",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, intentdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, intentdomain.ErrDuplicatePending):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_pending_intent",
			Message: "a pending intent already exists for this tuple",
		}
	case errors.Is(err, intentdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_status_transition",
			Message: "intent is not pending",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, merchantdomain.ErrAddressTaken):
		return http.StatusConflict, errorPayload{
			Type:    "merchant_address_taken",
			Message: "a merchant already exists for this address",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isAuthFailure(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrBadSignature),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, nonce.ErrNotFound),
		errors.Is(err, nonce.ErrAlreadyUsed),
		errors.Is(err, nonce.ErrExpired):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, merchantdomain.ErrNotFound),
		errors.Is(err, intentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, intentdomain.ErrInvalidAddress),
		errors.Is(err, intentdomain.ErrInvalidAmount),
		errors.Is(err, intentdomain.ErrInvalidChainID),
		errors.Is(err, merchantdomain.ErrInvalidName),
		errors.Is(err, merchantdomain.ErrInvalidAddress),
		errors.Is(err, merchantdomain.ErrInvalidWebhookURL),
		errors.Is(err, token.ErrInvalidAmount):
		return true
	default:
		return false
	}
}
