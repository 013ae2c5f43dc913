package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/bill/pdfsplit"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	"github.com/snowdenHM/bill/internal/orgcontext"
	"github.com/snowdenHM/bill/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Store    *storage.FileStore
	Splitter pdfsplit.Splitter
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	store    *storage.FileStore
	splitter pdfsplit.Splitter
}

func NewService(p Params) billdomain.IntakeService {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("bill.intake"),
		genID:    p.GenID,
		store:    p.Store,
		splitter: p.Splitter,
	}
}

func (s *Service) Upload(ctx context.Context, teamID snowflake.ID, req billdomain.UploadRequest) (*billdomain.UploadResult, error) {
	if len(req.Data) == 0 {
		return nil, billdomain.ErrEmptyFile
	}
	if req.FileType != billdomain.FileTypeSingle && req.FileType != billdomain.FileTypeMultiple {
		return nil, billdomain.ErrInvalidFileType
	}
	if !storage.AllowedExtension(req.FileName) {
		return nil, billdomain.ErrUnsupportedFileExt
	}

	isPDF := storage.IsPDF(req.FileName)
	if req.FileType == billdomain.FileTypeSingle && isPDF {
		return nil, billdomain.ErrPDFNotAllowed
	}

	if req.FileType == billdomain.FileTypeMultiple && isPDF {
		return s.splitUpload(ctx, teamID, req)
	}
	return s.singleUpload(ctx, teamID, req)
}

func (s *Service) singleUpload(ctx context.Context, teamID snowflake.ID, req billdomain.UploadRequest) (*billdomain.UploadResult, error) {
	name, err := s.NextName(ctx, teamID, req.Backend, req.Kind)
	if err != nil {
		return nil, err
	}

	rel, err := s.store.Save(s.teamSlug(ctx, teamID), req.FileName, req.Data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedExtension) {
			return nil, billdomain.ErrUnsupportedFileExt
		}
		return nil, err
	}

	bill, err := s.createBill(ctx, teamID, req, name, rel)
	if err != nil {
		return nil, err
	}

	metrics.Pipeline().BillUploaded(string(req.Backend), string(req.Kind))
	return &billdomain.UploadResult{Bills: []billdomain.Bill{*bill}}, nil
}

// splitUpload fans a multi-invoice PDF out into one Draft bill per page.
// A per-page failure stops the split and reports it; pages committed
// before the failure stay committed.
func (s *Service) splitUpload(ctx context.Context, teamID snowflake.ID, req billdomain.UploadRequest) (*billdomain.UploadResult, error) {
	pages, err := s.splitter.PageCount(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billdomain.ErrPDFSplit, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: no pages", billdomain.ErrPDFSplit)
	}

	stamp := time.Now().UTC().Format("20060102150405")
	result := &billdomain.UploadResult{Split: true}

	for page := 0; page < pages; page++ {
		jpeg, err := s.splitter.RasterizePage(req.Data, page)
		if err != nil {
			return result, fmt.Errorf("%w: page %d: %v", billdomain.ErrPDFSplit, page+1, err)
		}

		pageName := fmt.Sprintf("BM-Page-%d-%s", page+1, stamp)
		rel, err := s.store.Save(s.teamSlug(ctx, teamID), pageName+".jpg", jpeg)
		if err != nil {
			return result, fmt.Errorf("%w: page %d: %v", billdomain.ErrPDFSplit, page+1, err)
		}

		bill, err := s.createBill(ctx, teamID, req, pageName, rel)
		if err != nil {
			return result, fmt.Errorf("%w: page %d: %v", billdomain.ErrPDFSplit, page+1, err)
		}
		result.Bills = append(result.Bills, *bill)
		metrics.Pipeline().BillUploaded(string(req.Backend), string(req.Kind))
	}

	s.log.Info("pdf split complete",
		zap.String("team_id", teamID.String()),
		zap.Int("pages", pages),
	)
	return result, nil
}

func (s *Service) createBill(ctx context.Context, teamID snowflake.ID, req billdomain.UploadRequest, name, filePath string) (*billdomain.Bill, error) {
	now := time.Now().UTC()
	bill := billdomain.Bill{
		ID:        s.genID.Generate(),
		TeamID:    teamID,
		Backend:   req.Backend,
		Kind:      req.Kind,
		Name:      name,
		FilePath:  filePath,
		FileType:  req.FileType,
		Status:    billdomain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

// NextName reserves the next display-name number inside a transaction so
// concurrent uploads never collide.
func (s *Service) NextName(ctx context.Context, teamID snowflake.ID, backend billdomain.Backend, kind billdomain.Kind) (string, error) {
	prefix := billdomain.NamePrefix(backend, kind)

	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE bill_sequences SET next_value = next_value + 1 WHERE team_id = ? AND prefix = ?`,
			teamID, prefix,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			seq := billdomain.BillSequence{TeamID: teamID, Prefix: prefix, NextValue: 1}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
		}
		return tx.Raw(
			`SELECT next_value FROM bill_sequences WHERE team_id = ? AND prefix = ?`,
			teamID, prefix,
		).Scan(&next).Error
	})
	if err != nil {
		return "", err
	}
	return prefix + strconv.FormatInt(next, 10), nil
}

func (s *Service) List(ctx context.Context, teamID snowflake.ID, backend billdomain.Backend, kind billdomain.Kind, bucket billdomain.StatusBucket) ([]billdomain.Bill, error) {
	query := s.db.WithContext(ctx).
		Where("team_id = ? AND backend = ? AND kind = ?", teamID, backend, kind)

	switch bucket {
	case billdomain.BucketDraft:
		query = query.Where("status = ?", billdomain.StatusDraft)
	case billdomain.BucketAnalyzed:
		query = query.Where("status IN ?", []billdomain.Status{billdomain.StatusAnalyzed, billdomain.StatusVerified})
	case billdomain.BucketSynced:
		query = query.Where("status = ?", billdomain.StatusSynced)
	case billdomain.BucketAll:
	default:
		return nil, fmt.Errorf("unknown status bucket %q", bucket)
	}

	var bills []billdomain.Bill
	if err := query.Order("created_at DESC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

func (s *Service) Get(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*billdomain.Bill, error) {
	var bill billdomain.Bill
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, id).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billdomain.ErrBillNotFound
		}
		return nil, err
	}
	return &bill, nil
}

func (s *Service) Detail(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*billdomain.BillDetail, error) {
	bill, err := s.Get(ctx, teamID, id)
	if err != nil {
		return nil, err
	}

	detail := &billdomain.BillDetail{Bill: *bill}

	var analyzed billdomain.AnalyzedBill
	err = s.db.WithContext(ctx).
		Where("team_id = ? AND bill_id = ?", teamID, id).
		First(&analyzed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return detail, nil
		}
		return nil, err
	}
	detail.Analyzed = &analyzed

	err = s.db.WithContext(ctx).
		Where("team_id = ? AND analyzed_bill_id = ?", teamID, analyzed.ID).
		Order("created_at").
		Find(&detail.Products).Error
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Delete removes the bill, its analyzed record and line items, then the
// stored file. The row cascade runs in one transaction.
func (s *Service) Delete(ctx context.Context, teamID snowflake.ID, id snowflake.ID) error {
	bill, err := s.Get(ctx, teamID, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var analyzed []billdomain.AnalyzedBill
		if err := tx.Where("team_id = ? AND bill_id = ?", teamID, id).Find(&analyzed).Error; err != nil {
			return err
		}
		for _, row := range analyzed {
			if err := tx.Where("analyzed_bill_id = ?", row.ID).Delete(&billdomain.AnalyzedProduct{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("team_id = ? AND bill_id = ?", teamID, id).Delete(&billdomain.AnalyzedBill{}).Error; err != nil {
			return err
		}
		return tx.Where("team_id = ? AND id = ?", teamID, id).Delete(&billdomain.Bill{}).Error
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(bill.FilePath); err != nil {
		s.log.Warn("stored file removal failed",
			zap.String("bill_id", id.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) teamSlug(ctx context.Context, teamID snowflake.ID) string {
	if team, ok := orgcontext.Team(ctx); ok {
		return team.Slug
	}
	return teamID.String()
}
