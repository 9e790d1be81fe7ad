package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/api/middleware"
	"github.com/comunidadednb/billing-service/internal/auth"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/locker"
	"github.com/comunidadednb/billing-service/internal/usecase/planchange"
	"github.com/comunidadednb/billing-service/internal/usecase/reconcile"
)

// pixWatchWindow covers the 30 minute charge expiry plus settlement lag.
const pixWatchWindow = 35 * time.Minute

// ChangePlan runs the plan-change orchestration for the authenticated user.
func (r *Router) ChangePlan(c *gin.Context) {
	identity := auth.IdentityFrom(c)

	var req planchange.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "planSlug is required"})
		return
	}
	req.UserID = identity.UserID
	req.Email = identity.Email

	resp, err := r.changeUC.Execute(c.Request.Context(), req)
	if err != nil {
		r.respondChangeError(c, req, err)
		return
	}

	if resp.PixData != nil {
		r.watchPixCharge(resp.PixData.ID)
	}

	middleware.PlanChangesTotal.WithLabelValues(resp.Type, string(resp.PaymentMethod), "ok").Inc()
	c.JSON(http.StatusOK, resp)
}

// watchPixCharge is the settlement fallback for a lost provider callback.
// The watch ends when the charge settles or the window closes; applying
// the event twice is harmless because reconciliation is idempotent.
func (r *Router) watchPixCharge(chargeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), pixWatchWindow)
	go func() {
		defer cancel()
		r.watcher.Watch(ctx, chargeID, func() {
			event := reconcile.PixEvent{Status: "PAID", ChargeID: chargeID}
			if err := r.pixUC.ApplyPixEvent(ctx, event); err != nil {
				r.logger.Error("pix_poll_reconcile_failed",
					zap.String("charge_id", chargeID),
					zap.Error(err),
				)
			}
		})
	}()
}

func (r *Router) respondChangeError(c *gin.Context, req planchange.Request, err error) {
	middleware.PlanChangesTotal.WithLabelValues("unknown", string(req.Method), "error").Inc()

	switch {
	case errors.Is(err, planchange.ErrUnknownPlan), errors.Is(err, planchange.ErrSamePlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, subscriber.ErrNoActiveSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, locker.ErrLockHeld):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		r.logger.Error("plan_change_failed",
			zap.String("user_id", req.UserID),
			zap.String("target", req.TargetSlug),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// PreviewChange returns the read-only proration preview for a candidate
// plan, mutating nothing.
func (r *Router) PreviewChange(c *gin.Context) {
	identity := auth.IdentityFrom(c)
	targetSlug := c.Query("plan")
	if targetSlug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan query parameter is required"})
		return
	}

	preview, err := r.changeUC.Preview(c.Request.Context(), identity.UserID, targetSlug)
	if err != nil {
		switch {
		case errors.Is(err, planchange.ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, subscriber.ErrNoActiveSubscription):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, preview)
}

// SubscriptionStatus re-derives and returns the caller's subscription state
// from provider truth.
func (r *Router) SubscriptionStatus(c *gin.Context) {
	identity := auth.IdentityFrom(c)

	status, err := r.reconcileUC.Refresh(c.Request.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, subscriber.ErrNoActiveSubscription) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
