package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/comunidadednb/billing-service/internal/mailer"
)

type sendEmailRequest struct {
	To   string            `json:"to" binding:"required,email"`
	Type mailer.EmailType  `json:"type" binding:"required"`
	Data map[string]string `json:"data"`
}

// SendEmail enqueues one transactional email. Reserved for service tokens
// and admin users; the type must be one of the closed enumeration.
func (r *Router) SendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and type are required"})
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown email type"})
		return
	}

	// Each API send is its own ledger entry; the ULID key keeps it from
	// colliding with webhook-driven notifications.
	eventID := "api:" + ulid.Make().String()
	if err := r.ledger.Enqueue(c.Request.Context(), eventID, req.Type, req.To, req.Data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
