package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	"github.com/snowdenHM/bill/internal/syncer/adapters"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params defines the dependencies for the sync service.
type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Registry *adapters.Registry
}

// Service pushes verified bills to their accounting backend.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	registry *adapters.Registry
}

// NewService creates a sync service instance.
func NewService(p Params) syncerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("syncer.service"),
		registry: p.Registry,
	}
}

func (s *Service) Sync(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.Bill, error) {
	var bill billdomain.Bill
	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, billID).
		First(&bill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billdomain.ErrBillNotFound
		}
		return nil, err
	}
	if bill.Status != billdomain.StatusVerified {
		return nil, billdomain.ErrBillNotVerified
	}

	adapter, ok := s.registry.Adapter(bill.Backend)
	if !ok {
		return nil, syncerdomain.ErrAdapterNotFound
	}

	payload, err := s.buildPayload(ctx, &bill)
	if err != nil {
		return nil, err
	}

	if err := adapter.Push(ctx, payload); err != nil {
		metrics.Pipeline().StageOutcome("sync", "error")
		s.log.Warn("bill sync failed",
			zap.String("bill_id", bill.ID.String()),
			zap.String("backend", string(bill.Backend)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&bill).
		Update("status", billdomain.StatusSynced).Error; err != nil {
		return nil, err
	}
	bill.Status = billdomain.StatusSynced

	metrics.Pipeline().StageOutcome("sync", "success")
	s.log.Info("bill synced",
		zap.String("bill_id", bill.ID.String()),
		zap.String("backend", string(bill.Backend)),
		zap.String("kind", string(bill.Kind)),
	)
	return &bill, nil
}

// buildPayload resolves everything an adapter needs up front so adapters
// stay free of database access.
func (s *Service) buildPayload(ctx context.Context, bill *billdomain.Bill) (*syncerdomain.SyncPayload, error) {
	var team teamdomain.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", bill.TeamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, teamdomain.ErrTeamNotFound
		}
		return nil, err
	}

	var analyzed billdomain.AnalyzedBill
	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND bill_id = ?", bill.TeamID, bill.ID).
		First(&analyzed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billdomain.ErrAnalyzedNotFound
		}
		return nil, err
	}

	var products []billdomain.AnalyzedProduct
	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND analyzed_bill_id = ?", bill.TeamID, analyzed.ID).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(products)+4)
	appendID := func(id *snowflake.ID) {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	appendID(analyzed.VendorID)
	appendID(analyzed.IGSTLedgerID)
	appendID(analyzed.CGSTLedgerID)
	appendID(analyzed.SGSTLedgerID)
	for i := range products {
		appendID(products[i].LedgerID)
	}

	byID := make(map[snowflake.ID]*ledgerdomain.Ledger, len(ids))
	if len(ids) > 0 {
		var ledgers []ledgerdomain.Ledger
		if err := s.db.WithContext(ctx).
			Where("team_id = ? AND id IN ?", bill.TeamID, ids).
			Find(&ledgers).Error; err != nil {
			return nil, err
		}
		for i := range ledgers {
			byID[ledgers[i].ID] = &ledgers[i]
		}
	}

	lookup := func(id *snowflake.ID) *ledgerdomain.Ledger {
		if id == nil {
			return nil
		}
		return byID[*id]
	}

	payload := &syncerdomain.SyncPayload{
		TeamSlug:     team.Slug,
		Bill:         *bill,
		Analyzed:     analyzed,
		Products:     products,
		VendorLedger: lookup(analyzed.VendorID),
		TaxLedgers: map[string]*ledgerdomain.Ledger{
			syncerdomain.TaxRoleIGST: lookup(analyzed.IGSTLedgerID),
			syncerdomain.TaxRoleCGST: lookup(analyzed.CGSTLedgerID),
			syncerdomain.TaxRoleSGST: lookup(analyzed.SGSTLedgerID),
		},
		LineLedgers: make(map[snowflake.ID]*ledgerdomain.Ledger, len(products)),
	}
	for i := range products {
		if ledger := lookup(products[i].LedgerID); ledger != nil {
			payload.LineLedgers[products[i].ID] = ledger
		}
	}
	return payload, nil
}
