package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/zap"
)

// Adapter posts verified expense bills to Zoho Books as journals. When
// Zoho rejects the access token the adapter refreshes once through the
// credential service and replays the request.
type Adapter struct {
	http    *http.Client
	apiBase string
	creds   zohodomain.Service
	log     *zap.Logger
}

func NewAdapter(cfg config.Config, creds zohodomain.Service, log *zap.Logger) *Adapter {
	return &Adapter{
		http:    &http.Client{Timeout: cfg.HTTPClientTimeout},
		apiBase: cfg.ZohoAPIBase,
		creds:   creds,
		log:     log.Named("syncer.zoho"),
	}
}

func (a *Adapter) Backend() billdomain.Backend { return billdomain.BackendZoho }

func (a *Adapter) Push(ctx context.Context, payload *syncerdomain.SyncPayload) error {
	cred, err := a.creds.Credentials(ctx, payload.Bill.TeamID)
	if err != nil {
		return err
	}
	if !cred.OnboardingStatus {
		return zohodomain.ErrNotOnboarded
	}

	encoded, err := json.Marshal(journalPayload(payload))
	if err != nil {
		return err
	}

	status, remote, err := a.post(ctx, cred, encoded)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		metrics.Pipeline().TokenRefreshRetry("zoho")
		a.log.Info("zoho token expired, refreshing",
			zap.String("team", payload.TeamSlug),
		)
		if cred, err = a.creds.GenerateToken(ctx, payload.Bill.TeamID); err != nil {
			return err
		}
		if status, remote, err = a.post(ctx, cred, encoded); err != nil {
			return err
		}
	}
	if status == http.StatusCreated {
		return nil
	}

	a.log.Warn("zoho journal rejected",
		zap.String("team", payload.TeamSlug),
		zap.String("bill_id", payload.Bill.ID.String()),
		zap.Int("status", status),
	)
	return remote
}

func (a *Adapter) post(ctx context.Context, cred *zohodomain.Credential, body []byte) (int, *syncerdomain.RemoteError, error) {
	url := fmt.Sprintf("%s/books/v3/journals?organization_id=%s", a.apiBase, cred.OrganisationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+cred.AccessToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	remote := &syncerdomain.RemoteError{Backend: billdomain.BackendZoho, Status: resp.StatusCode}
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
		remote.Message = parsed.Message
	}
	return resp.StatusCode, remote, nil
}

func journalPayload(payload *syncerdomain.SyncPayload) map[string]any {
	var journalDate any
	if payload.Analyzed.BillDate != nil {
		journalDate = payload.Analyzed.BillDate.Format("2006-01-02")
	}

	var customerID string
	if payload.VendorLedger != nil {
		customerID = payload.VendorLedger.MasterID
	}

	lineItems := make([]map[string]any, 0, len(payload.Products))
	for _, product := range payload.Products {
		var accountID string
		if ledger := payload.LineLedgers[product.ID]; ledger != nil {
			accountID = ledger.MasterID
		}
		lineItems = append(lineItems, map[string]any{
			"description":     product.ItemDetails,
			"account_id":      accountID,
			"customer_id":     customerID,
			"amount":          product.Amount.InexactFloat64(),
			"debit_or_credit": product.DebitOrCredit,
		})
	}

	return map[string]any{
		"reference_number": payload.Analyzed.BillNo,
		"journal_date":     journalDate,
		"notes":            payload.Analyzed.Note,
		"line_items":       lineItems,
	}
}
