package verification

import (
	"github.com/snowdenHM/bill/internal/verification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("verification.service",
	fx.Provide(service.NewService),
)
