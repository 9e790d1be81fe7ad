package log

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/config"
)

var Module = fx.Module("log",
	fx.Provide(NewLogger),
)

// NewLogger builds the process-wide zap logger. Development gets the
// human-readable console encoder, everything else JSON.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
