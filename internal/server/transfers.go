package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/payitonchain/paygate/internal/matcher"
	"github.com/payitonchain/paygate/internal/signature"
	"github.com/payitonchain/paygate/internal/token"
	"go.uber.org/zap"
)

// IngestTransfer accepts one observed on-chain transfer from the indexer,
// dedups it by transaction hash and hands it to the matcher queue. The
// indexer may replay events freely; the dedup set keeps the queue clean.
func (s *Server) IngestTransfer(c *gin.Context) {
	var ev matcher.TransferEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ev.Hash = strings.TrimSpace(ev.Hash)
	if ev.Hash == "" || ev.ChainID <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if signature.NormalizeAddress(ev.From) == "" ||
		signature.NormalizeAddress(ev.To) == "" ||
		signature.NormalizeAddress(ev.Token) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if _, err := token.NormalizeRaw(ev.Amount, 0); err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	first, err := s.dedup.FirstSeen(ctx, ev.Hash)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !first {
		s.metrics.IncTransferDuplicate()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.forgetMark(ctx, ev.Hash)
		AbortWithError(c, err)
		return
	}
	if err := s.transfers.Enqueue(ctx, payload); err != nil {
		// The hash was marked seen but nothing got queued; release the
		// mark so the indexer's retry is not answered as a duplicate.
		s.forgetMark(ctx, ev.Hash)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) forgetMark(ctx context.Context, hash string) {
	// Detached from the request: a cancelled request context is one of
	// the ways the enqueue fails in the first place.
	ctx = context.WithoutCancel(ctx)
	if err := s.dedup.Forget(ctx, hash); err != nil {
		s.log.Error("failed to release dedup mark; replays of this hash will be rejected until the TTL lapses",
			zap.String("hash", hash),
			zap.Error(err),
		)
	}
}
