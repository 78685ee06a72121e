package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payitonchain/paygate/internal/signature"
)

func (s *Server) ListClientPayments(c *gin.Context) {
	address, ok := s.clientAddress(c)
	if !ok {
		return
	}

	intents, err := s.intents.ListByPayer(c.Request.Context(), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": intents})
}

// StreamClientPayments streams payment updates for one payer over SSE.
// The stream opens with a `connect` event carrying the current snapshot,
// then emits an `update` event per completion. Subscribing happens before
// the snapshot read so no completion can fall between them.
func (s *Server) StreamClientPayments(c *gin.Context) {
	address, ok := s.clientAddress(c)
	if !ok {
		return
	}

	sub, err := s.hub.Subscribe(address)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	defer sub.Close()

	snapshot, err := s.intents.ListByPayer(c.Request.Context(), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := writeSSE(writer, "connect", gin.H{"payments": snapshot}); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			// Evicted by a newer subscription for the same address.
			return
		case intent := <-sub.Events():
			if err := writeSSE(writer, "update", intent); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// clientAddress validates the path address against the session claim. A
// client token only grants access to its own payment history.
func (s *Server) clientAddress(c *gin.Context) (string, bool) {
	address := signature.NormalizeAddress(strings.TrimSpace(c.Param("address")))
	if address == "" {
		AbortWithError(c, ErrInvalidRequest)
		return "", false
	}

	claims := claimsFrom(c)
	if claims == nil {
		AbortWithError(c, ErrUnauthorized)
		return "", false
	}
	if !strings.EqualFold(claims.Address, address) {
		AbortWithError(c, ErrForbidden)
		return "", false
	}

	return address, true
}

func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
