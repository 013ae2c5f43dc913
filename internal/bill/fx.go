package bill

import (
	"github.com/snowdenHM/bill/internal/bill/pdfsplit"
	"github.com/snowdenHM/bill/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.intake",
	fx.Provide(func() pdfsplit.Splitter { return pdfsplit.New() }),
	fx.Provide(service.NewService),
)
