package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	ledgerservice "github.com/snowdenHM/bill/internal/ledger/service"
	"github.com/snowdenHM/bill/internal/storage"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubExtractor struct {
	payload []byte
	err     error
}

func (e stubExtractor) Extract(ctx context.Context, imageJPEG []byte) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.payload, nil
}

const intraStateResponse = `{
	"invoiceNumber": "INV-7",
	"dateIssued": "2024-05-10",
	"dueDate": "2024-06-10",
	"from": {"name": "Acme Traders", "address": "Pune"},
	"to": {"name": "Billmunshi Corp", "address": "Mumbai"},
	"items": [
		{"description": "Widget", "quantity": 2, "price": 100},
		{"description": "Gadget", "quantity": 1, "price": 50}
	],
	"total": 304,
	"igst": 0,
	"cgst": 27,
	"sgst": 27
}`

func setupAnalysisTest(t *testing.T, ext analysisdomain.Extractor) (*gorm.DB, *Service, *storage.FileStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&billdomain.Bill{},
		&billdomain.AnalyzedBill{},
		&billdomain.AnalyzedProduct{},
		&ledgerdomain.ParentLedger{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.TaxConfig{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	store := storage.NewFileStore(config.Config{MediaRoot: t.TempDir()})
	ledgers := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: node})

	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		store:     store,
		extractor: ext,
		ledgers:   ledgers,
	}
	return db, svc, store
}

func seedDraftBill(t *testing.T, db *gorm.DB, store *storage.FileStore, kind billdomain.Kind) billdomain.Bill {
	t.Helper()
	rel, err := store.Save("acme", "BM-TB-1.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("save file: %v", err)
	}
	bill := billdomain.Bill{
		ID:       snowflake.ID(100),
		TeamID:   1,
		Backend:  billdomain.BackendTally,
		Kind:     kind,
		Name:     "BM-TB-1",
		FilePath: rel,
		FileType: billdomain.FileTypeSingle,
		Status:   billdomain.StatusDraft,
	}
	if err := db.Create(&bill).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return bill
}

func seedVendorLedger(t *testing.T, db *gorm.DB, name string) {
	t.Helper()
	parent := ledgerdomain.ParentLedger{ID: 500, TeamID: 1, Name: ledgerdomain.ParentSundryCreditors}
	if err := db.Create(&parent).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	ledger := ledgerdomain.Ledger{ID: 501, TeamID: 1, ParentID: parent.ID, Name: name}
	if err := db.Create(&ledger).Error; err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
}

func TestAnalyzeVendorBill(t *testing.T) {
	db, svc, store := setupAnalysisTest(t, stubExtractor{payload: []byte(intraStateResponse)})
	bill := seedDraftBill(t, db, store, billdomain.KindVendor)
	seedVendorLedger(t, db, "Acme Traders")

	detail, err := svc.Analyze(context.Background(), 1, bill.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if detail.Bill.Status != billdomain.StatusAnalyzed {
		t.Fatalf("status = %s", detail.Bill.Status)
	}
	if !detail.Bill.Processed {
		t.Fatal("expected processed flag")
	}
	if detail.Analyzed == nil {
		t.Fatal("expected analyzed record")
	}
	if detail.Analyzed.BillNo != "INV-7" {
		t.Fatalf("bill no = %q", detail.Analyzed.BillNo)
	}
	if detail.Analyzed.GSTType != billdomain.GSTIntraState {
		t.Fatalf("gst type = %s", detail.Analyzed.GSTType)
	}
	if detail.Analyzed.VendorID == nil || *detail.Analyzed.VendorID != snowflake.ID(501) {
		t.Fatalf("vendor id = %v", detail.Analyzed.VendorID)
	}
	if detail.Analyzed.BillDate == nil || detail.Analyzed.BillDate.Format("2006-01-02") != "2024-05-10" {
		t.Fatalf("bill date = %v", detail.Analyzed.BillDate)
	}
	if len(detail.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(detail.Products))
	}
	if !detail.Products[0].Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("amount = %s", detail.Products[0].Amount)
	}
	if len(detail.Bill.AnalysedData) == 0 {
		t.Fatal("expected raw extraction persisted on bill")
	}
}

func TestAnalyzeExpenseBillAddsTaxRows(t *testing.T) {
	db, svc, store := setupAnalysisTest(t, stubExtractor{payload: []byte(intraStateResponse)})
	bill := seedDraftBill(t, db, store, billdomain.KindExpense)

	detail, err := svc.Analyze(context.Background(), 1, bill.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// Two line items plus synthetic CGST and SGST rows.
	if len(detail.Products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(detail.Products))
	}
	var cgstRow, sgstRow *billdomain.AnalyzedProduct
	for i := range detail.Products {
		switch detail.Products[i].ItemDetails {
		case "CGST":
			cgstRow = &detail.Products[i]
		case "SGST":
			sgstRow = &detail.Products[i]
		}
	}
	if cgstRow == nil || sgstRow == nil {
		t.Fatal("missing synthetic tax rows")
	}
	if !cgstRow.Amount.Equal(decimal.NewFromInt(27)) {
		t.Fatalf("cgst row amount = %s", cgstRow.Amount)
	}
	if !sgstRow.Amount.Equal(decimal.NewFromInt(27)) {
		t.Fatalf("sgst row amount = %s", sgstRow.Amount)
	}
}

func TestAnalyzeRejectsNonDraft(t *testing.T) {
	db, svc, store := setupAnalysisTest(t, stubExtractor{payload: []byte(intraStateResponse)})
	bill := seedDraftBill(t, db, store, billdomain.KindVendor)
	if err := db.Model(&billdomain.Bill{}).Where("id = ?", bill.ID).
		Update("status", billdomain.StatusAnalyzed).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := svc.Analyze(context.Background(), 1, bill.ID)
	if !errors.Is(err, billdomain.ErrBillAlreadyAnalyzed) {
		t.Fatalf("expected ErrBillAlreadyAnalyzed, got %v", err)
	}
}

func TestAnalyzeExtractionFailureLeavesDraft(t *testing.T) {
	db, svc, store := setupAnalysisTest(t, stubExtractor{err: analysisdomain.ErrExtractionFailed})
	bill := seedDraftBill(t, db, store, billdomain.KindVendor)

	_, err := svc.Analyze(context.Background(), 1, bill.ID)
	if !errors.Is(err, analysisdomain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	var reloaded billdomain.Bill
	if err := db.First(&reloaded, "id = ?", bill.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != billdomain.StatusDraft {
		t.Fatalf("expected Draft, got %s", reloaded.Status)
	}
	var count int64
	if err := db.Model(&billdomain.AnalyzedBill{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no analyzed rows, got %d", count)
	}
}

func TestAnalyzeVendorMissLeavesVendorUnset(t *testing.T) {
	db, svc, store := setupAnalysisTest(t, stubExtractor{payload: []byte(intraStateResponse)})
	bill := seedDraftBill(t, db, store, billdomain.KindVendor)
	// No ledgers seeded, so the sender cannot match.

	detail, err := svc.Analyze(context.Background(), 1, bill.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if detail.Analyzed.VendorID != nil {
		t.Fatalf("expected nil vendor, got %v", detail.Analyzed.VendorID)
	}
}
