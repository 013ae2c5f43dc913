package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	"github.com/snowdenHM/bill/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Params defines dependencies for the analysis service.
type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Store     *storage.FileStore
	Extractor analysisdomain.Extractor
	Ledgers   ledgerdomain.Service
}

// Service runs AI extraction and persists the analyzed record.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	store     *storage.FileStore
	extractor analysisdomain.Extractor
	ledgers   ledgerdomain.Service
}

func NewService(p Params) analysisdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("analysis.service"),
		genID:     p.GenID,
		store:     p.Store,
		extractor: p.Extractor,
		ledgers:   p.Ledgers,
	}
}

// Analyze extracts fields from the bill image, stores the raw extraction
// on the bill, then creates the analyzed record with its line items and
// moves the bill to Analyzed.
func (s *Service) Analyze(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.BillDetail, error) {
	var bill billdomain.Bill
	err := s.db.WithContext(ctx).
		Where("id = ? AND team_id = ?", billID, teamID).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billdomain.ErrBillNotFound
		}
		return nil, err
	}
	if bill.Status != billdomain.StatusDraft {
		return nil, billdomain.ErrBillAlreadyAnalyzed
	}

	image, err := s.store.Read(bill.FilePath)
	if err != nil {
		metrics.Pipeline().StageOutcome("analysis", "file_error")
		return nil, fmt.Errorf("%w: %v", analysisdomain.ErrBillFileRead, err)
	}

	raw, err := s.extractor.Extract(ctx, image)
	if err != nil {
		metrics.Pipeline().StageOutcome("analysis", "extraction_error")
		return nil, err
	}

	invoice, canonical, err := analysisdomain.Normalize(raw)
	if err != nil {
		metrics.Pipeline().StageOutcome("analysis", "malformed")
		return nil, err
	}

	// The raw extraction is kept even when the structured rows below fail,
	// so a human can inspect what the model returned.
	err = s.db.WithContext(ctx).Model(&bill).
		Update("analysed_data", datatypes.JSON(canonical)).Error
	if err != nil {
		return nil, err
	}
	bill.AnalysedData = datatypes.JSON(canonical)

	var vendor *ledgerdomain.Ledger
	if bill.Kind == billdomain.KindVendor {
		name := strings.ToLower(strings.TrimSpace(invoice.From.Name))
		if name != "" {
			vendor, err = s.ledgers.FindVendorByName(ctx, teamID, name)
			if err != nil {
				return nil, err
			}
		}
	}

	igst := analysisdomain.Decimal(invoice.IGST)
	cgst := analysisdomain.Decimal(invoice.CGST)
	sgst := analysisdomain.Decimal(invoice.SGST)

	gstType := billdomain.GSTUnknown
	switch {
	case igst.IsPositive():
		gstType = billdomain.GSTInterState
	case cgst.IsPositive() || sgst.IsPositive():
		gstType = billdomain.GSTIntraState
	}

	var billDate *time.Time
	if invoice.DateIssued != "" {
		if parsed, perr := time.Parse("2006-01-02", invoice.DateIssued); perr == nil {
			billDate = &parsed
		} else {
			s.log.Warn("unparseable bill date",
				zap.String("bill_id", billID.String()),
				zap.String("date", invoice.DateIssued),
			)
		}
	}

	analyzed := billdomain.AnalyzedBill{
		ID:       s.genID.Generate(),
		TeamID:   teamID,
		BillID:   &bill.ID,
		BillNo:   strings.TrimSpace(invoice.InvoiceNumber),
		BillDate: billDate,
		Total:    analysisdomain.Decimal(invoice.Total),
		IGST:     igst,
		CGST:     cgst,
		SGST:     sgst,
		Note:     "AI Analyzed Bill",
		GSTType:  gstType,
	}
	if vendor != nil {
		analyzed.VendorID = &vendor.ID
	}

	products := s.buildProducts(teamID, analyzed.ID, bill.Kind, invoice, cgst, sgst)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&analyzed).Error; err != nil {
			return err
		}
		if len(products) > 0 {
			if err := tx.Create(&products).Error; err != nil {
				return err
			}
		}
		return tx.Model(&billdomain.Bill{}).
			Where("id = ? AND team_id = ?", bill.ID, teamID).
			Updates(map[string]any{
				"status":    billdomain.StatusAnalyzed,
				"processed": true,
			}).Error
	})
	if err != nil {
		metrics.Pipeline().StageOutcome("analysis", "persist_error")
		return nil, err
	}

	bill.Status = billdomain.StatusAnalyzed
	bill.Processed = true
	metrics.Pipeline().StageOutcome("analysis", "success")
	s.log.Info("bill analyzed",
		zap.String("team_id", teamID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("gst_type", string(gstType)),
		zap.Int("line_items", len(products)),
	)

	return &billdomain.BillDetail{Bill: bill, Analyzed: &analyzed, Products: products}, nil
}

// buildProducts maps extracted items to line rows. Vendor bills keep
// price and quantity; expense bills carry only amounts and gain two
// synthetic CGST and SGST rows holding the bill-level tax figures.
func (s *Service) buildProducts(teamID, analyzedID snowflake.ID, kind billdomain.Kind, invoice *analysisdomain.RawInvoice, cgst, sgst decimal.Decimal) []billdomain.AnalyzedProduct {
	var products []billdomain.AnalyzedProduct

	for _, item := range invoice.Items {
		price := analysisdomain.Decimal(item.Price)
		qty := analysisdomain.Int(item.Quantity)

		product := billdomain.AnalyzedProduct{
			ID:             s.genID.Generate(),
			TeamID:         teamID,
			AnalyzedBillID: analyzedID,
			ItemDetails:    item.Description,
		}
		switch kind {
		case billdomain.KindVendor:
			product.Price = price
			product.Quantity = qty
			product.Amount = price.Mul(decimal.NewFromInt(int64(qty)))
		case billdomain.KindExpense:
			product.Amount = price.Mul(decimal.NewFromInt(int64(qty)))
			product.DebitOrCredit = billdomain.EntryCredit
		}
		products = append(products, product)
	}

	if kind == billdomain.KindExpense {
		products = append(products,
			billdomain.AnalyzedProduct{
				ID:             s.genID.Generate(),
				TeamID:         teamID,
				AnalyzedBillID: analyzedID,
				ItemDetails:    "CGST",
				Amount:         cgst,
				DebitOrCredit:  billdomain.EntryCredit,
			},
			billdomain.AnalyzedProduct{
				ID:             s.genID.Generate(),
				TeamID:         teamID,
				AnalyzedBillID: analyzedID,
				ItemDetails:    "SGST",
				Amount:         sgst,
				DebitOrCredit:  billdomain.EntryCredit,
			},
		)
	}

	return products
}
