package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snowdenHM/bill/internal/config"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/zap"
)

// Contact is one Zoho Books contact; only vendor-typed contacts are
// imported.
type Contact struct {
	ContactID   string `json:"contact_id"`
	ContactType string `json:"contact_type"`
	CompanyName string `json:"company_name"`
	GSTNo       string `json:"gst_no"`
}

// Account is one chart-of-accounts entry.
type Account struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
}

// Tax is one GST tax definition.
type Tax struct {
	TaxID         string      `json:"tax_id"`
	TaxName       string      `json:"tax_name"`
	TaxPercentage json.Number `json:"tax_percentage"`
}

// BooksClient reads master data from the Zoho Books API.
type BooksClient struct {
	http    *http.Client
	apiBase string
	log     *zap.Logger
}

func NewBooksClient(cfg config.Config, log *zap.Logger) *BooksClient {
	return &BooksClient{
		http:    &http.Client{Timeout: cfg.HTTPClientTimeout},
		apiBase: cfg.ZohoAPIBase,
		log:     log.Named("zoho.books"),
	}
}

func (c *BooksClient) Contacts(ctx context.Context, cred *zohodomain.Credential) ([]Contact, error) {
	var payload struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.get(ctx, cred, "/books/v3/contacts", &payload); err != nil {
		return nil, err
	}
	return payload.Contacts, nil
}

func (c *BooksClient) ChartOfAccounts(ctx context.Context, cred *zohodomain.Credential) ([]Account, error) {
	var payload struct {
		Accounts []Account `json:"chartofaccounts"`
	}
	if err := c.get(ctx, cred, "/books/v3/chartofaccounts", &payload); err != nil {
		return nil, err
	}
	return payload.Accounts, nil
}

func (c *BooksClient) Taxes(ctx context.Context, cred *zohodomain.Credential) ([]Tax, error) {
	var payload struct {
		Taxes []Tax `json:"taxes"`
	}
	if err := c.get(ctx, cred, "/books/v3/settings/taxes", &payload); err != nil {
		return nil, err
	}
	return payload.Taxes, nil
}

func (c *BooksClient) get(ctx context.Context, cred *zohodomain.Credential, path string, out any) error {
	url := fmt.Sprintf("%s%s?organization_id=%s", c.apiBase, path, cred.OrganisationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+cred.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", zohodomain.ErrMastersFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", zohodomain.ErrMastersFetchFailed, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", zohodomain.ErrMastersFetchFailed, err)
	}
	return nil
}
