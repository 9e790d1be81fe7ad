package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/api/middleware"
	stripeadapter "github.com/comunidadednb/billing-service/internal/adapter/billing/stripe"
	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/usecase/reconcile"
	"github.com/comunidadednb/billing-service/pkg/pixclient"
)

// HandleStripeWebhook verifies and applies one card-billing provider
// event. The signature is checked before any payload field is read.
func (r *Router) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := r.events.ParseEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, stripeadapter.ErrInvalidSignature):
			middleware.WebhookEventsTotal.WithLabelValues("stripe", "bad_signature").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, stripeadapter.ErrIgnoredEvent):
			middleware.WebhookEventsTotal.WithLabelValues("stripe", "ignored").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true})
		default:
			middleware.WebhookEventsTotal.WithLabelValues("stripe", "parse_error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	if err := r.reconcileUC.ApplyCardEvent(c.Request.Context(), event); err != nil {
		middleware.WebhookEventsTotal.WithLabelValues("stripe", "error").Inc()
		r.logger.Error("stripe_event_failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.WebhookEventsTotal.WithLabelValues("stripe", "applied").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandlePixWebhook applies one instant-transfer settlement callback. A
// payload referencing a transaction this service never created is a 404
// and changes nothing.
func (r *Router) HandlePixWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !pixclient.VerifySignature(r.pixSecret, payload, c.GetHeader("X-Webhook-Signature")) {
		middleware.WebhookEventsTotal.WithLabelValues("pix", "bad_signature").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event reconcile.PixEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if err := r.pixUC.ApplyPixEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			middleware.WebhookEventsTotal.WithLabelValues("pix", "unknown_txid").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
			return
		}
		middleware.WebhookEventsTotal.WithLabelValues("pix", "error").Inc()
		r.logger.Error("pix_event_failed",
			zap.String("txid", event.TxID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.WebhookEventsTotal.WithLabelValues("pix", "applied").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}
