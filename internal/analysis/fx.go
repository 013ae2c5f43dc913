package analysis

import (
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	"github.com/snowdenHM/bill/internal/analysis/extractor"
	"github.com/snowdenHM/bill/internal/analysis/service"
	"github.com/snowdenHM/bill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the analysis stage. The OpenAI client is provided behind
// the ChatClient interface so tests and future backends can replace it.
var Module = fx.Module("analysis.service",
	fx.Provide(extractor.NewClient),
	fx.Provide(func(client extractor.ChatClient, cfg config.Config, log *zap.Logger) analysisdomain.Extractor {
		return extractor.NewOpenAI(client, cfg, log)
	}),
	fx.Provide(service.NewService),
)
