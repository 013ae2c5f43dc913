package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

// BulkImport upserts parent groups by name and inserts the posted ledgers
// in one transaction; a bad row aborts the whole import.
func (s *Service) BulkImport(ctx context.Context, teamID snowflake.ID, entries []ledgerdomain.ImportEntry) ([]ledgerdomain.Ledger, error) {
	if len(entries) == 0 {
		return nil, ledgerdomain.ErrEmptyImport
	}

	now := time.Now().UTC()
	created := make([]ledgerdomain.Ledger, 0, len(entries))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parents := map[string]snowflake.ID{}
		for _, entry := range entries {
			parentName := strings.TrimSpace(entry.Parent)
			parentID, err := s.ensureParentTx(ctx, tx, teamID, parentName, parents, now)
			if err != nil {
				return err
			}

			ledger := ledgerdomain.Ledger{
				ID:             s.genID.Generate(),
				TeamID:         teamID,
				ParentID:       parentID,
				MasterID:       strings.TrimSpace(entry.MasterID),
				AlterID:        strings.TrimSpace(entry.AlterID),
				Name:           strings.TrimSpace(entry.Name),
				Alias:          strings.TrimSpace(entry.Alias),
				OpeningBalance: defaultString(entry.OpeningBalance, "0"),
				GSTIN:          strings.TrimSpace(entry.GSTIN),
				Company:        strings.TrimSpace(entry.Company),
				CreatedAt:      now,
			}
			if err := tx.Create(&ledger).Error; err != nil {
				return err
			}
			created = append(created, ledger)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ledger import complete",
		zap.String("team_id", teamID.String()),
		zap.Int("count", len(created)),
	)
	return created, nil
}

func (s *Service) ensureParentTx(ctx context.Context, tx *gorm.DB, teamID snowflake.ID, name string, seen map[string]snowflake.ID, now time.Time) (snowflake.ID, error) {
	if name == "" {
		return 0, ledgerdomain.ErrParentNotFound
	}
	if id, ok := seen[name]; ok {
		return id, nil
	}

	var parent ledgerdomain.ParentLedger
	err := tx.WithContext(ctx).
		Where("team_id = ? AND name = ?", teamID, name).
		First(&parent).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		parent = ledgerdomain.ParentLedger{
			ID:        s.genID.Generate(),
			TeamID:    teamID,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&parent).Error; err != nil {
			return 0, err
		}
	}
	seen[name] = parent.ID
	return parent.ID, nil
}

func (s *Service) List(ctx context.Context, teamID snowflake.ID) ([]ledgerdomain.Ledger, error) {
	var ledgers []ledgerdomain.Ledger
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("name").
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	return ledgers, nil
}

func (s *Service) Get(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*ledgerdomain.Ledger, error) {
	var ledger ledgerdomain.Ledger
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, id).
		First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerdomain.ErrLedgerNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

func (s *Service) ListParents(ctx context.Context, teamID snowflake.ID) ([]ledgerdomain.ParentLedger, error) {
	var parents []ledgerdomain.ParentLedger
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("name").
		Find(&parents).Error
	if err != nil {
		return nil, err
	}
	return parents, nil
}

func (s *Service) LedgersUnderParentName(ctx context.Context, teamID snowflake.ID, parentName string) ([]ledgerdomain.Ledger, error) {
	var parent ledgerdomain.ParentLedger
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND name = ?", teamID, parentName).
		First(&parent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerdomain.ErrParentNotFound
		}
		return nil, err
	}
	return s.LedgersUnderParent(ctx, teamID, parent.ID)
}

func (s *Service) LedgersUnderParent(ctx context.Context, teamID snowflake.ID, parentID snowflake.ID) ([]ledgerdomain.Ledger, error) {
	var ledgers []ledgerdomain.Ledger
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND parent_id = ?", teamID, parentID).
		Order("name").
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	return ledgers, nil
}

func (s *Service) FindVendorByName(ctx context.Context, teamID snowflake.ID, name string) (*ledgerdomain.Ledger, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}

	vendors, err := s.vendorSubtree(ctx, teamID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrParentNotFound) {
			return nil, nil
		}
		return nil, err
	}

	for i := range vendors {
		if strings.ToLower(strings.TrimSpace(vendors[i].Name)) == name {
			return &vendors[i], nil
		}
	}
	for i := range vendors {
		if strings.Contains(strings.ToLower(vendors[i].Name), name) {
			return &vendors[i], nil
		}
	}
	return nil, nil
}

// vendorSubtree prefers the configured vendor parent and falls back to the
// conventional "Sundry Creditors" group.
func (s *Service) vendorSubtree(ctx context.Context, teamID snowflake.ID) ([]ledgerdomain.Ledger, error) {
	cfg, err := s.TaxConfig(ctx, teamID)
	if err == nil && cfg != nil && cfg.VendorParentID != nil {
		return s.LedgersUnderParent(ctx, teamID, *cfg.VendorParentID)
	}
	return s.LedgersUnderParentName(ctx, teamID, ledgerdomain.ParentSundryCreditors)
}

func (s *Service) TaxConfig(ctx context.Context, teamID snowflake.ID) (*ledgerdomain.TaxConfig, error) {
	var cfg ledgerdomain.TaxConfig
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) UpdateTaxConfig(ctx context.Context, teamID snowflake.ID, req ledgerdomain.UpdateTaxConfigRequest) (*ledgerdomain.TaxConfig, error) {
	for _, parentID := range []*snowflake.ID{
		req.VendorParentID, req.IGSTParentID, req.CGSTParentID,
		req.SGSTParentID, req.COAParentID, req.COAExpenseParentID,
	} {
		if parentID == nil {
			continue
		}
		var count int64
		err := s.db.WithContext(ctx).
			Model(&ledgerdomain.ParentLedger{}).
			Where("team_id = ? AND id = ?", teamID, *parentID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ledgerdomain.ErrInvalidParentID
		}
	}

	now := time.Now().UTC()
	var result *ledgerdomain.TaxConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg ledgerdomain.TaxConfig
		err := tx.Where("team_id = ?", teamID).First(&cfg).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cfg = ledgerdomain.TaxConfig{
				ID:        s.genID.Generate(),
				TeamID:    teamID,
				CreatedAt: now,
			}
		}
		cfg.VendorParentID = req.VendorParentID
		cfg.IGSTParentID = req.IGSTParentID
		cfg.CGSTParentID = req.CGSTParentID
		cfg.SGSTParentID = req.SGSTParentID
		cfg.COAParentID = req.COAParentID
		cfg.COAExpenseParentID = req.COAExpenseParentID
		cfg.UpdatedAt = now

		if err := tx.Save(&cfg).Error; err != nil {
			return err
		}
		result = &cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
