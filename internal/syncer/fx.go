package syncer

import (
	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/syncer/adapters"
	"github.com/snowdenHM/bill/internal/syncer/adapters/tally"
	zohoadapter "github.com/snowdenHM/bill/internal/syncer/adapters/zoho"
	"github.com/snowdenHM/bill/internal/syncer/service"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the sync stage. Each accounting backend contributes one
// adapter to the registry.
var Module = fx.Module("syncer.service",
	fx.Provide(func(cfg config.Config, creds zohodomain.Service, log *zap.Logger) *adapters.Registry {
		return adapters.NewRegistry(
			tally.NewAdapter(cfg, log),
			zohoadapter.NewAdapter(cfg, creds, log),
		)
	}),
	fx.Provide(service.NewService),
)
