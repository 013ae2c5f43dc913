package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Backend selects the accounting system a bill syncs to.
type Backend string

const (
	BackendTally Backend = "tally"
	BackendZoho  Backend = "zoho"
)

// Kind splits vendor bills (purchase invoices) from expense journals.
type Kind string

const (
	KindVendor  Kind = "vendor"
	KindExpense Kind = "expense"
)

// Status is the bill lifecycle. Transitions are one-directional:
// Draft -> Analyzed -> Verified -> Synced.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusAnalyzed Status = "Analyzed"
	StatusVerified Status = "Verified"
	StatusSynced   Status = "Synced"
)

// FileType tags an upload as a single pre-rasterized invoice or a
// multi-invoice file that gets split per page.
type FileType string

const (
	FileTypeSingle   FileType = "Single Invoice/File"
	FileTypeMultiple FileType = "Multiple Invoice/File"
)

// GSTType is derived from tax magnitudes at analysis time and gates the
// reconciliation math during verification.
type GSTType string

const (
	GSTInterState GSTType = "Inter-State"
	GSTIntraState GSTType = "Intra-State"
	GSTUnknown    GSTType = "Unknown"
)

// DebitOrCredit is the expense line polarity.
const (
	EntryCredit = "credit"
	EntryDebit  = "debit"
)

// Bill is one uploaded document moving through the pipeline.
type Bill struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	TeamID       snowflake.ID   `gorm:"not null;index" json:"team_id"`
	Backend      Backend        `gorm:"type:text;not null;index" json:"backend"`
	Kind         Kind           `gorm:"type:text;not null;index" json:"kind"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	FilePath     string         `gorm:"type:text;not null" json:"file_path"`
	FileType     FileType       `gorm:"type:text;not null" json:"file_type"`
	AnalysedData datatypes.JSON `json:"analysed_data"`
	Status       Status         `gorm:"type:text;not null;default:'Draft';index" json:"status"`
	Processed    bool           `gorm:"not null;default:false" json:"processed"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// AnalyzedBill is the structured, human-editable extraction for one bill.
// BillID is nullable on purpose: the row survives as an audit trail when
// its bill is deleted.
type AnalyzedBill struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	TeamID       snowflake.ID    `gorm:"not null;index" json:"team_id"`
	BillID       *snowflake.ID   `gorm:"index" json:"bill_id"`
	VendorID     *snowflake.ID   `json:"vendor_id"`
	BillNo       string          `gorm:"type:text" json:"bill_no"`
	BillDate     *time.Time      `gorm:"type:date" json:"bill_date"`
	Total        decimal.Decimal `gorm:"type:numeric(10,2)" json:"total"`
	IGST         decimal.Decimal `gorm:"type:numeric(10,2)" json:"igst"`
	IGSTLedgerID *snowflake.ID   `json:"igst_ledger_id"`
	CGST         decimal.Decimal `gorm:"type:numeric(10,2)" json:"cgst"`
	CGSTLedgerID *snowflake.ID   `json:"cgst_ledger_id"`
	SGST         decimal.Decimal `gorm:"type:numeric(10,2)" json:"sgst"`
	SGSTLedgerID *snowflake.ID   `json:"sgst_ledger_id"`
	Note         string          `gorm:"type:text" json:"note"`
	GSTType      GSTType         `gorm:"type:text" json:"gst_type"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AnalyzedBill) TableName() string { return "analyzed_bills" }

// AnalyzedProduct is one line item of an analyzed bill. LedgerID points at
// a tax ledger for vendor bills and a chart-of-accounts ledger for expense
// bills. DebitOrCredit is only meaningful on the expense path, GSTRate and
// the per-tax splits only on the vendor path.
type AnalyzedProduct struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TeamID         snowflake.ID    `gorm:"not null;index" json:"team_id"`
	AnalyzedBillID snowflake.ID    `gorm:"not null;index" json:"analyzed_bill_id"`
	ItemName       string          `gorm:"type:text" json:"item_name"`
	ItemDetails    string          `gorm:"type:text" json:"item_details"`
	LedgerID       *snowflake.ID   `json:"ledger_id"`
	Price          decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
	Quantity       int             `gorm:"not null;default:0" json:"quantity"`
	Amount         decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	GSTRate        string          `gorm:"type:text" json:"gst"`
	IGST           decimal.Decimal `gorm:"type:numeric(10,2)" json:"igst"`
	CGST           decimal.Decimal `gorm:"type:numeric(10,2)" json:"cgst"`
	SGST           decimal.Decimal `gorm:"type:numeric(10,2)" json:"sgst"`
	DebitOrCredit  string          `gorm:"type:text;default:'credit'" json:"debit_or_credit"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AnalyzedProduct) TableName() string { return "analyzed_products" }

// BillSequence backs display-name numbering with an atomic per-team,
// per-prefix counter instead of scanning existing names.
type BillSequence struct {
	TeamID    snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	Prefix    string       `gorm:"primaryKey;type:text" json:"prefix"`
	NextValue int64        `gorm:"not null;default:0" json:"next_value"`
}

// TableName sets the database table name.
func (BillSequence) TableName() string { return "bill_sequences" }

// NamePrefix returns the display-name prefix for a backend/kind pair,
// e.g. "BM-TB-" for Tally vendor bills.
func NamePrefix(backend Backend, kind Kind) string {
	switch {
	case backend == BackendTally && kind == KindVendor:
		return "BM-TB-"
	case backend == BackendTally && kind == KindExpense:
		return "BM-TE-"
	case backend == BackendZoho && kind == KindVendor:
		return "BM-ZV-"
	case backend == BackendZoho && kind == KindExpense:
		return "BM-ZE-"
	}
	return "BM-XX-"
}

// ValidBackend reports whether value names a known backend.
func ValidBackend(value string) (Backend, bool) {
	switch Backend(value) {
	case BackendTally:
		return BackendTally, true
	case BackendZoho:
		return BackendZoho, true
	}
	return "", false
}

// ValidKind reports whether value names a known bill kind.
func ValidKind(value string) (Kind, bool) {
	switch Kind(value) {
	case KindVendor:
		return KindVendor, true
	case KindExpense:
		return KindExpense, true
	}
	return "", false
}
