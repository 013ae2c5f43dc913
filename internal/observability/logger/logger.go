package logger

import (
	"github.com/snowdenHM/bill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production gets JSON at info level,
// everything else a development console logger.
func New(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		zcfg := zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zcfg.Build()
	}
	return zap.NewDevelopment()
}

var Module = fx.Module("observability.logger",
	fx.Provide(New),
)
