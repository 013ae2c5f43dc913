package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/storage"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubSplitter struct {
	pages    int
	failPage int // 1-based page whose rasterization fails; 0 means never
}

func (s *stubSplitter) PageCount(data []byte) (int, error) {
	if s.pages == 0 {
		return 0, errors.New("broken pdf")
	}
	return s.pages, nil
}

func (s *stubSplitter) RasterizePage(data []byte, page int) ([]byte, error) {
	if s.failPage > 0 && page+1 == s.failPage {
		return nil, fmt.Errorf("render failure on page %d", page+1)
	}
	return []byte("jpeg-bytes"), nil
}

func setupBillTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&billdomain.Bill{},
		&billdomain.AnalyzedBill{},
		&billdomain.AnalyzedProduct{},
		&billdomain.BillSequence{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newIntakeService(t *testing.T, db *gorm.DB, splitter *stubSplitter) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	store := storage.NewFileStore(config.Config{MediaRoot: t.TempDir()})
	return &Service{
		db:       db,
		log:      zap.NewNop(),
		genID:    node,
		store:    store,
		splitter: splitter,
	}
}

func TestUploadRejectsPDFForSingleInvoice(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	_, err := svc.Upload(context.Background(), 1, billdomain.UploadRequest{
		Backend:  billdomain.BackendTally,
		Kind:     billdomain.KindVendor,
		FileName: "invoice.pdf",
		FileType: billdomain.FileTypeSingle,
		Data:     []byte("%PDF-1.4"),
	})
	if !errors.Is(err, billdomain.ErrPDFNotAllowed) {
		t.Fatalf("expected ErrPDFNotAllowed, got %v", err)
	}

	var count int64
	if err := db.Model(&billdomain.Bill{}).Count(&count).Error; err != nil {
		t.Fatalf("count bills: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no bills persisted, got %d", count)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	_, err := svc.Upload(context.Background(), 1, billdomain.UploadRequest{
		Backend:  billdomain.BackendTally,
		Kind:     billdomain.KindVendor,
		FileName: "invoice.gif",
		FileType: billdomain.FileTypeSingle,
		Data:     []byte("gif"),
	})
	if !errors.Is(err, billdomain.ErrUnsupportedFileExt) {
		t.Fatalf("expected ErrUnsupportedFileExt, got %v", err)
	}
}

func TestUploadSplitsMultiPagePDF(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 3})

	result, err := svc.Upload(context.Background(), 1, billdomain.UploadRequest{
		Backend:  billdomain.BackendTally,
		Kind:     billdomain.KindVendor,
		FileName: "bundle.pdf",
		FileType: billdomain.FileTypeMultiple,
		Data:     []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !result.Split {
		t.Fatalf("expected split result")
	}
	if len(result.Bills) != 3 {
		t.Fatalf("expected 3 bills, got %d", len(result.Bills))
	}

	seen := map[string]struct{}{}
	for i, bill := range result.Bills {
		if bill.Status != billdomain.StatusDraft {
			t.Fatalf("expected Draft status, got %s", bill.Status)
		}
		if bill.FileType != billdomain.FileTypeMultiple {
			t.Fatalf("expected inherited file type, got %s", bill.FileType)
		}
		if _, dup := seen[bill.FilePath]; dup {
			t.Fatalf("page %d reuses file path %s", i+1, bill.FilePath)
		}
		seen[bill.FilePath] = struct{}{}
	}
}

func TestUploadSplitStopsOnPageFailure(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 3, failPage: 3})

	result, err := svc.Upload(context.Background(), 1, billdomain.UploadRequest{
		Backend:  billdomain.BackendTally,
		Kind:     billdomain.KindVendor,
		FileName: "bundle.pdf",
		FileType: billdomain.FileTypeMultiple,
		Data:     []byte("%PDF-1.4"),
	})
	if !errors.Is(err, billdomain.ErrPDFSplit) {
		t.Fatalf("expected ErrPDFSplit, got %v", err)
	}
	// Earlier pages stay committed.
	if result == nil || len(result.Bills) != 2 {
		t.Fatalf("expected 2 committed pages, got %+v", result)
	}

	var count int64
	if err := db.Model(&billdomain.Bill{}).Count(&count).Error; err != nil {
		t.Fatalf("count bills: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 bill rows, got %d", count)
	}
}

func TestNextNameSequencing(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	seq := billdomain.BillSequence{TeamID: 1, Prefix: "BM-TB-", NextValue: 41}
	if err := db.Create(&seq).Error; err != nil {
		t.Fatalf("seed sequence: %v", err)
	}

	name, err := svc.NextName(context.Background(), 1, billdomain.BackendTally, billdomain.KindVendor)
	if err != nil {
		t.Fatalf("next name: %v", err)
	}
	if name != "BM-TB-42" {
		t.Fatalf("expected BM-TB-42, got %s", name)
	}
}

func TestNextNameStartsAtOnePerTeamAndPrefix(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	name, err := svc.NextName(context.Background(), 7, billdomain.BackendZoho, billdomain.KindExpense)
	if err != nil {
		t.Fatalf("next name: %v", err)
	}
	if name != "BM-ZE-1" {
		t.Fatalf("expected BM-ZE-1, got %s", name)
	}

	// Other team, same prefix, independent counter.
	name, err = svc.NextName(context.Background(), 8, billdomain.BackendZoho, billdomain.KindExpense)
	if err != nil {
		t.Fatalf("next name: %v", err)
	}
	if name != "BM-ZE-1" {
		t.Fatalf("expected team-scoped BM-ZE-1, got %s", name)
	}
}

func TestListBuckets(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	statuses := []billdomain.Status{
		billdomain.StatusDraft, billdomain.StatusAnalyzed,
		billdomain.StatusVerified, billdomain.StatusSynced,
	}
	for i, status := range statuses {
		bill := billdomain.Bill{
			ID:      snowflake.ID(i + 1),
			TeamID:  1,
			Backend: billdomain.BackendTally,
			Kind:    billdomain.KindVendor,
			Name:    fmt.Sprintf("BM-TB-%d", i+1),
			Status:  status,
		}
		if err := db.Create(&bill).Error; err != nil {
			t.Fatalf("seed bill: %v", err)
		}
	}

	drafts, err := svc.List(context.Background(), 1, billdomain.BackendTally, billdomain.KindVendor, billdomain.BucketDraft)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}

	analyzed, err := svc.List(context.Background(), 1, billdomain.BackendTally, billdomain.KindVendor, billdomain.BucketAnalyzed)
	if err != nil {
		t.Fatalf("list analyzed: %v", err)
	}
	// Analyzed bucket includes Verified, matching the review listing.
	if len(analyzed) != 2 {
		t.Fatalf("expected 2 in analyzed bucket, got %d", len(analyzed))
	}

	synced, err := svc.List(context.Background(), 2, billdomain.BackendTally, billdomain.KindVendor, billdomain.BucketSynced)
	if err != nil {
		t.Fatalf("list synced: %v", err)
	}
	if len(synced) != 0 {
		t.Fatalf("expected team isolation, got %d rows", len(synced))
	}
}

func TestDeleteCascadesAnalyzedRows(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	bill := billdomain.Bill{ID: 10, TeamID: 1, Backend: billdomain.BackendTally, Kind: billdomain.KindVendor, Name: "BM-TB-1", Status: billdomain.StatusAnalyzed}
	if err := db.Create(&bill).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	billID := bill.ID
	analyzed := billdomain.AnalyzedBill{ID: 11, TeamID: 1, BillID: &billID}
	if err := db.Create(&analyzed).Error; err != nil {
		t.Fatalf("seed analyzed: %v", err)
	}
	product := billdomain.AnalyzedProduct{ID: 12, TeamID: 1, AnalyzedBillID: analyzed.ID}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if err := svc.Delete(context.Background(), 1, billID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, model := range []any{&billdomain.Bill{}, &billdomain.AnalyzedBill{}, &billdomain.AnalyzedProduct{}} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected cascade delete for %T, found %d rows", model, count)
		}
	}
}

func TestDeleteIsTeamScoped(t *testing.T) {
	db := setupBillTestDB(t)
	svc := newIntakeService(t, db, &stubSplitter{pages: 1})

	bill := billdomain.Bill{ID: 20, TeamID: 1, Backend: billdomain.BackendTally, Kind: billdomain.KindVendor, Name: "BM-TB-1"}
	if err := db.Create(&bill).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}

	if err := svc.Delete(context.Background(), 2, bill.ID); !errors.Is(err, billdomain.ErrBillNotFound) {
		t.Fatalf("expected ErrBillNotFound for foreign team, got %v", err)
	}
}
