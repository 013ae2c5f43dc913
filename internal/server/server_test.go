package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	billservice "github.com/snowdenHM/bill/internal/bill/service"
	"github.com/snowdenHM/bill/internal/config"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	ledgerservice "github.com/snowdenHM/bill/internal/ledger/service"
	"github.com/snowdenHM/bill/internal/storage"
	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
	verificationservice "github.com/snowdenHM/bill/internal/verification/service"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubPageSplitter struct{}

func (stubPageSplitter) PageCount(data []byte) (int, error) { return 1, nil }

func (stubPageSplitter) RasterizePage(data []byte, page int) ([]byte, error) { return data, nil }

type stubAnalysis struct{}

func (stubAnalysis) Analyze(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.BillDetail, error) {
	return nil, analysisdomain.ErrExtractionFailed
}

type stubSync struct{}

func (stubSync) Sync(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.Bill, error) {
	return nil, billdomain.ErrBillNotVerified
}

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB, teamdomain.Team) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&teamdomain.Team{},
		&ledgerdomain.ParentLedger{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.TaxConfig{},
		&billdomain.Bill{},
		&billdomain.AnalyzedBill{},
		&billdomain.AnalyzedProduct{},
		&billdomain.BillSequence{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	team := teamdomain.Team{ID: snowflake.ID(1), Name: "Acme", Slug: "acme"}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("seed team: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	log := zap.NewNop()
	cfg := config.Config{MediaRoot: t.TempDir()}
	store := storage.NewFileStore(cfg)

	ledgers := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node})
	intake := billservice.NewService(billservice.Params{
		DB: db, Log: log, GenID: node, Store: store, Splitter: stubPageSplitter{},
	})
	verification := verificationservice.NewService(verificationservice.Params{
		DB: db, Log: log, Ledgers: ledgers,
	})

	srv := &Server{
		cfg:          cfg,
		log:          log,
		db:           db,
		store:        store,
		intake:       intake,
		analysis:     stubAnalysis{},
		verification: verification,
		syncer:       stubSync{},
		ledgers:      ledgers,
	}

	engine := gin.New()
	srv.RegisterAPIRoutes(engine)
	return engine, db, team
}

func uploadRequest(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("fileType", string(billdomain.FileTypeSingle)); err != nil {
		t.Fatalf("write field: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUnknownTeamSlugIs404(t *testing.T) {
	engine, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/org/ghost/bills/tally/vendor", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAndListBills(t *testing.T) {
	engine, _, _ := setupServer(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "/org/acme/bills/tally/vendor", "invoice.png", []byte("png-bytes")))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body = %s", w.Code, w.Body.String())
	}

	list := httptest.NewRequest(http.MethodGet, "/org/acme/bills/tally/vendor?bucket=draft", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, list)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	var resp struct {
		Data []billdomain.Bill `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("bills = %d", len(resp.Data))
	}
	if resp.Data[0].Name != "BM-TB-1" {
		t.Fatalf("name = %q", resp.Data[0].Name)
	}
}

func TestUploadRejectsPDFForSingleInvoice(t *testing.T) {
	engine, _, _ := setupServer(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "/org/acme/bills/tally/vendor", "scan.pdf", []byte("%PDF-1.4")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestLedgerImportReceiver(t *testing.T) {
	engine, db, team := setupServer(t)

	payload := `{"LEDGER":[{"Master_Id":"1","Name":"Acme Traders","Parent":"Sundry Creditors","GSTIN":"27AAAAA0000A1Z5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/org/acme/bills/tally/api/v1/ledger/", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&ledgerdomain.Ledger{}).Where("team_id = ?", team.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledgers = %d", count)
	}

	empty := httptest.NewRequest(http.MethodPost, "/org/acme/bills/tally/api/v1/ledger/", bytes.NewBufferString(`{"LEDGER":[]}`))
	empty.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, empty)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty import status = %d", w.Code)
	}
}

func TestTallyBillReceiverAcknowledges(t *testing.T) {
	engine, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/org/acme/bills/tally/api/v1/vendor/", bytes.NewBufferString(`{"vendor":{}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestBillDetailIsTeamScoped(t *testing.T) {
	engine, db, _ := setupServer(t)

	other := teamdomain.Team{ID: snowflake.ID(2), Name: "Rival", Slug: "rival"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed team: %v", err)
	}
	foreign := billdomain.Bill{
		ID:       snowflake.ID(900),
		TeamID:   other.ID,
		Backend:  billdomain.BackendTally,
		Kind:     billdomain.KindVendor,
		Name:     "BM-TB-1",
		FilePath: "rival/b.png",
		FileType: billdomain.FileTypeSingle,
		Status:   billdomain.StatusDraft,
	}
	if err := db.Create(&foreign).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/org/acme/bills/tally/vendor/900", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestExportRejectsUnknownFilters(t *testing.T) {
	engine, _, _ := setupServer(t)

	for _, target := range []string{
		"/org/acme/exports/synced-bills.xlsx?backend=quickbooks",
		"/org/acme/exports/synced-bills.xlsx?kind=receipt",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d body = %s", target, w.Code, w.Body.String())
		}
	}

	// Known values still pass through to the report.
	req := httptest.NewRequest(http.MethodGet, "/org/acme/exports/synced-bills.xlsx?backend=tally&kind=vendor", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestTaxConfigRoundTrip(t *testing.T) {
	engine, db, team := setupServer(t)

	parent := ledgerdomain.ParentLedger{ID: snowflake.ID(500), TeamID: team.ID, Name: ledgerdomain.ParentSundryCreditors}
	if err := db.Create(&parent).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	body := `{"vendor_parent_id":"500"}`
	req := httptest.NewRequest(http.MethodPut, "/org/acme/settings/tax-config", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", w.Code, w.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, "/org/acme/settings/tax-config", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, get)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp struct {
		Data *ledgerdomain.TaxConfig `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data == nil || resp.Data.VendorParentID == nil || *resp.Data.VendorParentID != parent.ID {
		t.Fatalf("tax config = %+v", resp.Data)
	}
}
