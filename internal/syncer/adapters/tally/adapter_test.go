package tally

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	"go.uber.org/zap"
)

func vendorBillPayload() *syncerdomain.SyncPayload {
	billDate := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	vendorID := snowflake.ID(501)
	cgstLedgerID := snowflake.ID(601)
	lineLedgerID := snowflake.ID(701)
	productID := snowflake.ID(102)

	return &syncerdomain.SyncPayload{
		TeamSlug: "acme",
		Bill: billdomain.Bill{
			ID:      snowflake.ID(100),
			TeamID:  snowflake.ID(1),
			Backend: billdomain.BackendTally,
			Kind:    billdomain.KindVendor,
		},
		Analyzed: billdomain.AnalyzedBill{
			ID:           snowflake.ID(101),
			VendorID:     &vendorID,
			BillNo:       "INV-42",
			BillDate:     &billDate,
			Total:        decimal.NewFromInt(354),
			CGST:         decimal.NewFromInt(27),
			SGST:         decimal.NewFromInt(27),
			CGSTLedgerID: &cgstLedgerID,
			Note:         "AI Analyzed Bill",
			GSTType:      billdomain.GSTIntraState,
		},
		Products: []billdomain.AnalyzedProduct{
			{
				ID:       productID,
				ItemName: "Widget",
				LedgerID: &lineLedgerID,
				Price:    decimal.NewFromInt(150),
				Quantity: 2,
				Amount:   decimal.NewFromInt(300),
				GSTRate:  "18%",
				CGST:     decimal.NewFromInt(27),
				SGST:     decimal.NewFromInt(27),
			},
		},
		VendorLedger: &ledgerdomain.Ledger{
			ID:       vendorID,
			MasterID: "V-1",
			Name:     "Acme Traders",
			GSTIN:    "27AAAAA0000A1Z5",
			Company:  "Acme",
		},
		TaxLedgers: map[string]*ledgerdomain.Ledger{
			syncerdomain.TaxRoleCGST: {ID: cgstLedgerID, Name: "CGST Output"},
		},
		LineLedgers: map[snowflake.ID]*ledgerdomain.Ledger{
			productID: {ID: lineLedgerID, Name: "GST 18%"},
		},
	}
}

func newTestAdapter(serverURL string) *Adapter {
	return NewAdapter(config.Config{
		ServerURL:         serverURL,
		HTTPClientTimeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestPushVendorBill(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTestAdapter(srv.URL).Push(context.Background(), vendorBillPayload()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if gotPath != "/org/acme/bills/tally/api/v1/vendor/" {
		t.Fatalf("path = %q", gotPath)
	}

	vendor := gotBody["vendor"].(map[string]any)
	if vendor["name"] != "Acme Traders" || vendor["master_id"] != "V-1" {
		t.Fatalf("vendor block = %v", vendor)
	}
	details := gotBody["bill_details"].(map[string]any)
	if details["bill_number"] != "INV-42" || details["date"] != "2024-05-10" {
		t.Fatalf("bill_details = %v", details)
	}
	if details["company_id"] != "acme" {
		t.Fatalf("company_id = %v", details["company_id"])
	}
	taxes := gotBody["taxes"].(map[string]any)
	cgst := taxes["cgst"].(map[string]any)
	if cgst["amount"].(float64) != 27 || cgst["ledger"] != "CGST Output" {
		t.Fatalf("cgst block = %v", cgst)
	}
	igst := taxes["igst"].(map[string]any)
	if igst["ledger"] != "No Tax Ledger" {
		t.Fatalf("igst ledger = %v", igst["ledger"])
	}
	lines := gotBody["line_items"].([]any)
	if len(lines) != 1 {
		t.Fatalf("line_items = %d", len(lines))
	}
	line := lines[0].(map[string]any)
	if line["tax_ledger"] != "GST 18%" || line["amount"].(float64) != 300 {
		t.Fatalf("line = %v", line)
	}
}

func TestPushVendorBillWithoutVendor(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := vendorBillPayload()
	payload.VendorLedger = nil
	if err := newTestAdapter(srv.URL).Push(context.Background(), payload); err != nil {
		t.Fatalf("push: %v", err)
	}
	vendor := gotBody["vendor"].(map[string]any)
	if vendor["name"] != "No Ledger" || vendor["master_id"] != "No Ledger" {
		t.Fatalf("vendor fallback = %v", vendor)
	}
}

func TestPushExpenseBill(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := vendorBillPayload()
	payload.Bill.Kind = billdomain.KindExpense
	payload.Products[0].ItemDetails = "Office supplies"
	payload.Products[0].DebitOrCredit = billdomain.EntryDebit

	if err := newTestAdapter(srv.URL).Push(context.Background(), payload); err != nil {
		t.Fatalf("push: %v", err)
	}
	if gotPath != "/org/acme/bills/tally/api/v1/expense/" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["reference_number"] != "INV-42" || gotBody["journal_date"] != "2024-05-10" {
		t.Fatalf("journal header = %v", gotBody)
	}
	lines := gotBody["line_items"].([]any)
	line := lines[0].(map[string]any)
	if line["description"] != "Office supplies" || line["debit_or_credit"] != "debit" {
		t.Fatalf("line = %v", line)
	}
}

func TestPushSurfacesRemoteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "vendor ledger missing in tally"})
	}))
	defer srv.Close()

	err := newTestAdapter(srv.URL).Push(context.Background(), vendorBillPayload())
	if !errors.Is(err, syncerdomain.ErrSyncRejected) {
		t.Fatalf("err = %v, want sync rejection", err)
	}
	var remote *syncerdomain.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %T", err)
	}
	if remote.Message != "vendor ledger missing in tally" || remote.Status != http.StatusBadRequest {
		t.Fatalf("remote = %+v", remote)
	}
}

func TestPushFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestAdapter(srv.URL).Push(context.Background(), vendorBillPayload())
	var remote *syncerdomain.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %T %v", err, err)
	}
	if remote.Error() != "failed to send data to tally (status 502)" {
		t.Fatalf("message = %q", remote.Error())
	}
}
