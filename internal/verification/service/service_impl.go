package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/cache"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	verifdomain "github.com/snowdenHM/bill/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const taxConfigTTL = 5 * time.Minute

// Params defines dependencies for the verification service.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Ledgers ledgerdomain.Service
}

// Service applies reviewer edits and reconciles GST totals.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	validate *validator.Validate
	ledgers  ledgerdomain.Service
	taxCfg   *cache.TTLCache[snowflake.ID, *ledgerdomain.TaxConfig]
}

func NewService(p Params) verifdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("verification.service"),
		validate: validator.New(),
		ledgers:  p.Ledgers,
		taxCfg:   cache.NewTTLCache[snowflake.ID, *ledgerdomain.TaxConfig](),
	}
}

// Verify persists reviewer edits and, when the line-level GST sums match
// the bill header, moves the bill to Verified. On a mismatch the line
// edits stay committed and the returned error carries both sides.
func (s *Service) Verify(ctx context.Context, teamID, billID snowflake.ID, req verifdomain.VerifyRequest) (*billdomain.BillDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", verifdomain.ErrInvalidRequest, err)
	}

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
	if bill.Status != billdomain.StatusAnalyzed && bill.Status != billdomain.StatusVerified {
		return nil, billdomain.ErrBillNotAnalyzed
	}

	var analyzed billdomain.AnalyzedBill
	err = s.db.WithContext(ctx).
		Where("bill_id = ? AND team_id = ?", billID, teamID).
		First(&analyzed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billdomain.ErrAnalyzedNotFound
		}
		return nil, err
	}

	taxCfg, err := s.resolveTaxConfig(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLedgerRefs(ctx, teamID, bill.Kind, taxCfg, req); err != nil {
		return nil, err
	}

	var products []billdomain.AnalyzedProduct
	err = s.db.WithContext(ctx).
		Where("analyzed_bill_id = ? AND team_id = ?", analyzed.ID, teamID).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]*billdomain.AnalyzedProduct, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var deleted []snowflake.ID
	for _, edit := range req.Products {
		product, ok := byID[edit.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", verifdomain.ErrUnknownProduct, edit.ID)
		}
		if bill.Kind == billdomain.KindExpense && strings.TrimSpace(edit.ItemDetails) == "" {
			deleted = append(deleted, edit.ID)
			delete(byID, edit.ID)
			continue
		}
		applyEdit(product, edit)
	}

	remaining := make([]billdomain.AnalyzedProduct, 0, len(byID))
	for i := range products {
		if _, ok := byID[products[i].ID]; ok {
			remaining = append(remaining, products[i])
		}
	}

	var totalIGST, totalCGST, totalSGST decimal.Decimal
	if bill.Kind == billdomain.KindVendor {
		totalIGST, totalCGST, totalSGST = computeLineTaxes(remaining, analyzed.GSTType)
	}

	// Line edits commit before reconciliation so a reviewer never loses
	// work to a mismatch.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range remaining {
			if err := tx.Save(&remaining[i]).Error; err != nil {
				return err
			}
		}
		if len(deleted) > 0 {
			if err := tx.Where("id IN ? AND team_id = ?", deleted, teamID).
				Delete(&billdomain.AnalyzedProduct{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bill.Kind == billdomain.KindVendor {
		if mismatch := reconcile(analyzed.GSTType, req, totalIGST, totalCGST, totalSGST); mismatch != nil {
			metrics.Pipeline().StageOutcome("verification", "mismatch")
			return nil, mismatch
		}
	}

	applyHeader(&analyzed, req)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&analyzed).Error; err != nil {
			return err
		}
		return tx.Model(&billdomain.Bill{}).
			Where("id = ? AND team_id = ?", billID, teamID).
			Update("status", billdomain.StatusVerified).Error
	})
	if err != nil {
		return nil, err
	}

	bill.Status = billdomain.StatusVerified
	metrics.Pipeline().StageOutcome("verification", "success")
	s.log.Info("bill verified",
		zap.String("team_id", teamID.String()),
		zap.String("bill_id", billID.String()),
		zap.String("gst_type", string(analyzed.GSTType)),
	)

	return &billdomain.BillDetail{Bill: bill, Analyzed: &analyzed, Products: remaining}, nil
}

// resolveTaxConfig fetches the team's tax configuration once per request,
// behind a short-lived cache. A missing configuration is fine; fallbacks
// apply downstream.
func (s *Service) resolveTaxConfig(ctx context.Context, teamID snowflake.ID) (*ledgerdomain.TaxConfig, error) {
	if cfg, ok := s.taxCfg.Get(teamID); ok {
		return cfg, nil
	}
	cfg, err := s.ledgers.TaxConfig(ctx, teamID)
	if err != nil {
		return nil, err
	}
	s.taxCfg.Set(teamID, cfg, taxConfigTTL)
	return cfg, nil
}

// checkLedgerRefs confirms every referenced ledger belongs to the team
// and sits in the subtree its role allows: the vendor under the vendor
// parent, bill-level and line tax ledgers under the tax parents, expense
// line accounts under the chart-of-accounts parent. Configured parents
// win; a team without configuration falls back to the conventional
// parent names, and a team with neither leaves the role unconstrained.
func (s *Service) checkLedgerRefs(ctx context.Context, teamID snowflake.ID, kind billdomain.Kind, taxCfg *ledgerdomain.TaxConfig, req verifdomain.VerifyRequest) error {
	ids := make([]snowflake.ID, 0, 4+len(req.Products))
	for _, ref := range []*snowflake.ID{req.VendorID, req.IGSTLedgerID, req.CGSTLedgerID, req.SGSTLedgerID} {
		if ref != nil {
			ids = append(ids, *ref)
		}
	}
	for _, edit := range req.Products {
		if edit.TaxLedgerID != nil {
			ids = append(ids, *edit.TaxLedgerID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var ledgers []ledgerdomain.Ledger
	err := s.db.WithContext(ctx).
		Where("id IN ? AND team_id = ?", ids, teamID).
		Find(&ledgers).Error
	if err != nil {
		return err
	}
	found := make(map[snowflake.ID]ledgerdomain.Ledger, len(ledgers))
	for _, l := range ledgers {
		found[l.ID] = l
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: %s", verifdomain.ErrInvalidLedgerID, id)
		}
	}

	var cfgVendor, cfgIGST, cfgCGST, cfgSGST, cfgCOA *snowflake.ID
	if taxCfg != nil {
		cfgVendor = taxCfg.VendorParentID
		cfgIGST = taxCfg.IGSTParentID
		cfgCGST = taxCfg.CGSTParentID
		cfgSGST = taxCfg.SGSTParentID
		cfgCOA = taxCfg.COAExpenseParentID
		if cfgCOA == nil {
			cfgCOA = taxCfg.COAParentID
		}
	}

	var sundry, duties, coa *snowflake.ID
	if cfgVendor == nil && req.VendorID != nil {
		if sundry, err = s.parentByName(ctx, teamID, ledgerdomain.ParentSundryCreditors); err != nil {
			return err
		}
	}
	if cfgIGST == nil || cfgCGST == nil || cfgSGST == nil {
		if duties, err = s.parentByName(ctx, teamID, ledgerdomain.ParentDutiesAndTaxes); err != nil {
			return err
		}
	}
	if kind == billdomain.KindExpense && cfgCOA == nil {
		if coa, err = s.parentByName(ctx, teamID, ledgerdomain.ParentChartOfAccounts); err != nil {
			return err
		}
	}

	vendorParent := orParent(cfgVendor, sundry)
	igstParent := orParent(cfgIGST, duties)
	cgstParent := orParent(cfgCGST, duties)
	sgstParent := orParent(cfgSGST, duties)
	coaParent := orParent(cfgCOA, coa)

	inSubtree := func(ref *snowflake.ID, parents ...*snowflake.ID) bool {
		if ref == nil {
			return true
		}
		constrained := false
		for _, parent := range parents {
			if parent == nil {
				continue
			}
			constrained = true
			if found[*ref].ParentID == *parent {
				return true
			}
		}
		return !constrained
	}

	if !inSubtree(req.VendorID, vendorParent) {
		return fmt.Errorf("%w: vendor %s outside vendor subtree", verifdomain.ErrInvalidLedgerID, *req.VendorID)
	}
	for _, role := range []struct {
		name   string
		ref    *snowflake.ID
		parent *snowflake.ID
	}{
		{"igst", req.IGSTLedgerID, igstParent},
		{"cgst", req.CGSTLedgerID, cgstParent},
		{"sgst", req.SGSTLedgerID, sgstParent},
	} {
		if !inSubtree(role.ref, role.parent) {
			return fmt.Errorf("%w: %s ledger %s outside tax subtree", verifdomain.ErrInvalidLedgerID, role.name, *role.ref)
		}
	}
	for _, edit := range req.Products {
		if edit.TaxLedgerID == nil {
			continue
		}
		if kind == billdomain.KindVendor {
			if !inSubtree(edit.TaxLedgerID, igstParent, cgstParent, sgstParent) {
				return fmt.Errorf("%w: line tax ledger %s outside tax subtree", verifdomain.ErrInvalidLedgerID, *edit.TaxLedgerID)
			}
			continue
		}
		if !inSubtree(edit.TaxLedgerID, coaParent) {
			return fmt.Errorf("%w: line account %s outside chart of accounts", verifdomain.ErrInvalidLedgerID, *edit.TaxLedgerID)
		}
	}
	return nil
}

// parentByName looks up a conventional parent group. A team that never
// imported the group gets a nil id, which leaves the role unconstrained.
func (s *Service) parentByName(ctx context.Context, teamID snowflake.ID, name string) (*snowflake.ID, error) {
	var parent ledgerdomain.ParentLedger
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND name = ?", teamID, name).
		First(&parent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	id := parent.ID
	return &id, nil
}

func orParent(configured, fallback *snowflake.ID) *snowflake.ID {
	if configured != nil {
		return configured
	}
	return fallback
}

func applyEdit(product *billdomain.AnalyzedProduct, edit verifdomain.ProductEdit) {
	product.ItemName = edit.ItemName
	product.ItemDetails = edit.ItemDetails
	product.LedgerID = edit.TaxLedgerID
	product.Price = edit.Price
	product.Quantity = edit.Quantity
	product.Amount = edit.Amount
	product.GSTRate = edit.GSTRate
	if edit.DebitOrCredit != "" {
		product.DebitOrCredit = edit.DebitOrCredit
	}
}

func applyHeader(analyzed *billdomain.AnalyzedBill, req verifdomain.VerifyRequest) {
	analyzed.VendorID = req.VendorID
	analyzed.BillNo = req.BillNo
	analyzed.Note = req.Note
	analyzed.IGST = req.IGST
	analyzed.CGST = req.CGST
	analyzed.SGST = req.SGST
	analyzed.IGSTLedgerID = req.IGSTLedgerID
	analyzed.CGSTLedgerID = req.CGSTLedgerID
	analyzed.SGSTLedgerID = req.SGSTLedgerID
	if req.BillDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.BillDate); err == nil {
			analyzed.BillDate = &parsed
		}
	}
}

// computeLineTaxes recomputes per-line GST from each line's rate and
// amount. Inter-State bills put the whole amount on IGST; Intra-State
// bills split it evenly between CGST and SGST, each half rounded to two
// decimal places.
func computeLineTaxes(products []billdomain.AnalyzedProduct, gstType billdomain.GSTType) (igst, cgst, sgst decimal.Decimal) {
	for i := range products {
		product := &products[i]
		product.IGST = decimal.Zero
		product.CGST = decimal.Zero
		product.SGST = decimal.Zero

		pct := parseGSTRate(product.GSTRate)
		if pct.IsZero() {
			continue
		}
		gst := pct.Div(decimal.NewFromInt(100)).Mul(product.Amount)

		switch gstType {
		case billdomain.GSTInterState:
			product.IGST = gst.Round(2)
			igst = igst.Add(product.IGST)
		case billdomain.GSTIntraState:
			half := gst.Div(decimal.NewFromInt(2)).Round(2)
			product.CGST = half
			product.SGST = half
			cgst = cgst.Add(half)
			sgst = sgst.Add(half)
		}
	}
	return igst, cgst, sgst
}

// parseGSTRate reads rates like "18%". Anything without a percent sign
// counts as zero.
func parseGSTRate(rate string) decimal.Decimal {
	if !strings.Contains(rate, "%") {
		return decimal.Zero
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rate), "%"))
	pct, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return pct
}

func reconcile(gstType billdomain.GSTType, req verifdomain.VerifyRequest, igst, cgst, sgst decimal.Decimal) error {
	switch gstType {
	case billdomain.GSTInterState:
		if !igst.Round(2).Equal(req.IGST.Round(2)) {
			return &verifdomain.MismatchError{
				GSTType:     gstType,
				ProductIGST: igst.Round(2),
				BillIGST:    req.IGST.Round(2),
			}
		}
	case billdomain.GSTIntraState:
		if !cgst.Round(2).Equal(req.CGST.Round(2)) || !sgst.Round(2).Equal(req.SGST.Round(2)) {
			return &verifdomain.MismatchError{
				GSTType:     gstType,
				ProductCGST: cgst.Round(2),
				ProductSGST: sgst.Round(2),
				BillCGST:    req.CGST.Round(2),
				BillSGST:    req.SGST.Round(2),
			}
		}
	}
	return nil
}
