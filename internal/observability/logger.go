package observability

import (
	"github.com/ecclesiahq/ecclesia/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production uses JSON output with
// ISO8601 timestamps; everything else gets the colored development encoder.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(
		zap.String("service", "ecclesia"),
		zap.String("version", cfg.AppVersion),
	), nil
}
