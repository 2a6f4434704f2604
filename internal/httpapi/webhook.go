package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"adportal/internal/quote"
	"adportal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	webhookSecretHeader = "X-Webhook-Secret"

	eventQuoteStatusChanged = "quote_status_changed"
)

type webhookPayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type statusChange struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// backendWebhook applies status changes made by staff in the hosted backend.
func (s *Server) backendWebhook(c *gin.Context) {
	secret := c.GetHeader(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.WebhookSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	log := s.logger.With(
		zap.String("request_id", logger.RequestIDFrom(c)),
		zap.String("event_type", payload.EventType))

	switch payload.EventType {
	case eventQuoteStatusChanged:
		var change statusChange
		if err := json.Unmarshal(payload.Data, &change); err != nil || change.Reference == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reference and status are required"})
			return
		}
		status, err := quote.ParseStatus(change.Status)
		if err != nil {
			s.writeError(c, err)
			return
		}

		ctx := c.Request.Context()
		current, err := s.quotes.Get(ctx, change.Reference)
		if err != nil {
			s.writeError(c, err)
			return
		}
		previous := current.Status

		q, err := s.quotes.UpdateStatusByRef(ctx, change.Reference, status)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if q.Status != previous && s.notifier != nil {
			s.notifier.NotifyStatusChange(ctx, q)
		}
		c.JSON(http.StatusOK, gin.H{"reference": q.Ref, "status": q.Status})
	default:
		log.Debug("Ignoring webhook event")
		c.JSON(http.StatusOK, gin.H{"ignored": true})
	}
}
