package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PixChargeStatus proxies the provider-side status of a QR charge so the
// client can poll while the code is on screen.
func (r *Router) PixChargeStatus(c *gin.Context) {
	chargeID := c.Param("id")

	charge, err := r.pix.ChargeStatus(c.Request.Context(), chargeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     charge.ID,
		"status": charge.Status,
	})
}
