package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	"go.uber.org/zap"
)

const (
	noLedger    = "No Ledger"
	noTaxLedger = "No Tax Ledger"
)

// Adapter posts verified bills to the Tally connector endpoint exposed
// by this deployment. The connector polls these receiver routes from the
// customer's network, so "pushing" means handing the bill to our own
// receiver API.
type Adapter struct {
	http      *http.Client
	serverURL string
	log       *zap.Logger
}

func NewAdapter(cfg config.Config, log *zap.Logger) *Adapter {
	return &Adapter{
		http:      &http.Client{Timeout: cfg.HTTPClientTimeout},
		serverURL: cfg.ServerURL,
		log:       log.Named("syncer.tally"),
	}
}

func (a *Adapter) Backend() billdomain.Backend { return billdomain.BackendTally }

func (a *Adapter) Push(ctx context.Context, payload *syncerdomain.SyncPayload) error {
	var body any
	var segment string
	switch payload.Bill.Kind {
	case billdomain.KindVendor:
		body = vendorPayload(payload)
		segment = "vendor"
	case billdomain.KindExpense:
		body = expensePayload(payload)
		segment = "expense"
	default:
		return fmt.Errorf("unsupported bill kind %q", payload.Bill.Kind)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/org/%s/bills/tally/api/v1/%s/", a.serverURL, payload.TeamSlug, segment)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	remote := &syncerdomain.RemoteError{Backend: billdomain.BackendTally, Status: resp.StatusCode}
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
		remote.Message = parsed.Message
	}
	a.log.Warn("tally push rejected",
		zap.String("team", payload.TeamSlug),
		zap.String("bill_id", payload.Bill.ID.String()),
		zap.Int("status", resp.StatusCode),
	)
	return remote
}

func vendorPayload(payload *syncerdomain.SyncPayload) map[string]any {
	vendor := map[string]any{
		"master_id": noLedger,
		"name":      noLedger,
		"gst_in":    noLedger,
		"company":   noLedger,
	}
	if payload.VendorLedger != nil {
		vendor["master_id"] = payload.VendorLedger.MasterID
		vendor["name"] = payload.VendorLedger.Name
		vendor["gst_in"] = payload.VendorLedger.GSTIN
		vendor["company"] = payload.VendorLedger.Company
	}

	var billDate any
	if payload.Analyzed.BillDate != nil {
		billDate = payload.Analyzed.BillDate.Format("2006-01-02")
	}

	lineItems := make([]map[string]any, 0, len(payload.Products))
	for _, product := range payload.Products {
		lineItems = append(lineItems, map[string]any{
			"item_name":    product.ItemName,
			"item_details": product.ItemDetails,
			"tax_ledger":   ledgerName(payload.LineLedgers[product.ID], noTaxLedger),
			"price":        product.Price.InexactFloat64(),
			"quantity":     product.Quantity,
			"amount":       product.Amount.InexactFloat64(),
			"gst":          product.GSTRate,
			"igst":         product.IGST.InexactFloat64(),
			"cgst":         product.CGST.InexactFloat64(),
			"sgst":         product.SGST.InexactFloat64(),
		})
	}

	return map[string]any{
		"vendor": vendor,
		"bill_details": map[string]any{
			"bill_number":  payload.Analyzed.BillNo,
			"date":         billDate,
			"total_amount": payload.Analyzed.Total.InexactFloat64(),
			"company_id":   payload.TeamSlug,
		},
		"taxes": map[string]any{
			"igst": taxBlock(payload, syncerdomain.TaxRoleIGST, payload.Analyzed.IGST),
			"cgst": taxBlock(payload, syncerdomain.TaxRoleCGST, payload.Analyzed.CGST),
			"sgst": taxBlock(payload, syncerdomain.TaxRoleSGST, payload.Analyzed.SGST),
		},
		"line_items": lineItems,
	}
}

func expensePayload(payload *syncerdomain.SyncPayload) map[string]any {
	var journalDate any
	if payload.Analyzed.BillDate != nil {
		journalDate = payload.Analyzed.BillDate.Format("2006-01-02")
	}

	lineItems := make([]map[string]any, 0, len(payload.Products))
	for _, product := range payload.Products {
		lineItems = append(lineItems, map[string]any{
			"description":     product.ItemDetails,
			"ledger":          ledgerName(payload.LineLedgers[product.ID], noLedger),
			"amount":          product.Amount.InexactFloat64(),
			"debit_or_credit": product.DebitOrCredit,
		})
	}

	return map[string]any{
		"reference_number": payload.Analyzed.BillNo,
		"journal_date":     journalDate,
		"notes":            payload.Analyzed.Note,
		"company_id":       payload.TeamSlug,
		"line_items":       lineItems,
	}
}

func taxBlock(payload *syncerdomain.SyncPayload, role string, amount decimal.Decimal) map[string]any {
	return map[string]any{
		"amount": amount.InexactFloat64(),
		"ledger": ledgerName(payload.TaxLedgers[role], noTaxLedger),
	}
}

func ledgerName(ledger *ledgerdomain.Ledger, fallback string) string {
	if ledger == nil {
		return fallback
	}
	return ledger.Name
}
