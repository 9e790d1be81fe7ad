package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/domain/plan"
)

type planResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Interval    string `json:"interval"`
	SortOrder   int    `json:"sortOrder"`
}

// ListPlans returns the active plan tiers ordered cheapest first. Display
// names come from the plans table when present, the compiled catalog
// otherwise, so the endpoint works before the table is seeded.
func (r *Router) ListPlans(c *gin.Context) {
	records, err := r.plans.List(c.Request.Context())
	if err != nil {
		r.logger.Error("list plans failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list plans"})
		return
	}

	names := make(map[string]string, len(records))
	active := make(map[string]bool, len(records))
	for _, rec := range records {
		names[rec.Slug] = rec.Name
		active[rec.Slug] = rec.Active
	}

	out := make([]planResponse, 0, len(plan.Catalog))
	for _, def := range plan.Ordered() {
		if !def.Active {
			continue
		}
		if seen, ok := active[def.Slug]; ok && !seen {
			continue
		}
		name := def.Tier
		if n, ok := names[def.Slug]; ok && n != "" {
			name = n
		}
		out = append(out, planResponse{
			Slug:        def.Slug,
			Name:        name,
			AmountCents: def.AmountCents,
			Interval:    string(def.Interval),
			SortOrder:   def.SortOrder,
		})
	}

	c.JSON(http.StatusOK, gin.H{"plans": out})
}
