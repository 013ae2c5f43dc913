package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ImportEntry is one row of a bulk ledger import, in the wire shape the
// Tally connector posts.
type ImportEntry struct {
	MasterID       string `json:"Master_Id"`
	AlterID        string `json:"Alter_Id"`
	Name           string `json:"Name"`
	Parent         string `json:"Parent"`
	Alias          string `json:"ALIAS"`
	OpeningBalance string `json:"OpeningBalance"`
	GSTIN          string `json:"GSTIN"`
	Company        string `json:"Company"`
}

// UpdateTaxConfigRequest replaces a team's subtree role mapping.
type UpdateTaxConfigRequest struct {
	VendorParentID     *snowflake.ID `json:"vendor_parent_id"`
	IGSTParentID       *snowflake.ID `json:"igst_parent_id"`
	CGSTParentID       *snowflake.ID `json:"cgst_parent_id"`
	SGSTParentID       *snowflake.ID `json:"sgst_parent_id"`
	COAParentID        *snowflake.ID `json:"chart_of_accounts_id"`
	COAExpenseParentID *snowflake.ID `json:"chart_of_accounts_expense_id"`
}

// Service is the ledger directory: bulk import, lookups and the per-team
// tax configuration that drives verification field choices.
type Service interface {
	BulkImport(ctx context.Context, teamID snowflake.ID, entries []ImportEntry) ([]Ledger, error)
	List(ctx context.Context, teamID snowflake.ID) ([]Ledger, error)
	Get(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*Ledger, error)
	ListParents(ctx context.Context, teamID snowflake.ID) ([]ParentLedger, error)
	LedgersUnderParentName(ctx context.Context, teamID snowflake.ID, parentName string) ([]Ledger, error)
	LedgersUnderParent(ctx context.Context, teamID snowflake.ID, parentID snowflake.ID) ([]Ledger, error)

	// FindVendorByName matches an extracted sender name against the vendor
	// subtree: case-insensitive exact match first, then substring. A miss
	// returns (nil, nil).
	FindVendorByName(ctx context.Context, teamID snowflake.ID, name string) (*Ledger, error)

	TaxConfig(ctx context.Context, teamID snowflake.ID) (*TaxConfig, error)
	UpdateTaxConfig(ctx context.Context, teamID snowflake.ID, req UpdateTaxConfigRequest) (*TaxConfig, error)
}

var (
	ErrEmptyImport     = errors.New("empty_ledger_import")
	ErrLedgerNotFound  = errors.New("ledger_not_found")
	ErrParentNotFound  = errors.New("parent_ledger_not_found")
	ErrInvalidParentID = errors.New("invalid_parent_ledger_id")
)
