package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/snowdenHM/bill/internal/config"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params defines the dependencies for the background scheduler.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Zoho      zohodomain.Service
}

// Scheduler runs the periodic background jobs. Zoho access tokens expire
// after an hour, so the keep-warm job refreshes every onboarded
// credential on a fixed cadence.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// New builds the scheduler and registers it with the fx lifecycle. An
// empty cron expression disables the token job entirely.
func New(p Params) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		log:  p.Log.Named("scheduler"),
	}

	if spec := p.Config.TokenRefreshCron; spec != "" {
		_, err := s.cron.AddFunc(spec, func() {
			ctx := context.Background()
			if err := p.Zoho.RefreshAllTokens(ctx); err != nil {
				s.log.Warn("zoho token refresh sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			return nil, err
		}
		s.log.Info("zoho token refresh scheduled", zap.String("cron", spec))
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return s, nil
}

// Module wires the scheduler.
var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(*Scheduler) {}),
)
