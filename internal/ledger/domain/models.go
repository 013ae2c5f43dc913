package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Well-known parent group names. Vendor matching and tax ledger choices
// fall back to these when a team has no explicit tax configuration.
const (
	ParentSundryCreditors = "Sundry Creditors"
	ParentDutiesAndTaxes  = "Duties & Taxes"
	ParentChartOfAccounts = "Chart of Accounts"
)

// ParentLedger is a named grouping of ledgers, e.g. all vendor accounts.
type ParentLedger struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_parent_ledgers_team_name,priority:1" json:"team_id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_parent_ledgers_team_name,priority:2" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ParentLedger) TableName() string { return "parent_ledgers" }

// Ledger is a leaf account in the team's chart of accounts. Rows are
// created by bulk import from the accounting backend and stay immutable
// until the next import.
type Ledger struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID         snowflake.ID `gorm:"not null;index" json:"team_id"`
	ParentID       snowflake.ID `gorm:"not null;index" json:"parent_id"`
	MasterID       string       `gorm:"type:text" json:"master_id"`
	AlterID        string       `gorm:"type:text" json:"alter_id"`
	Name           string       `gorm:"type:text;not null;index" json:"name"`
	Alias          string       `gorm:"type:text" json:"alias"`
	OpeningBalance string       `gorm:"type:text" json:"opening_balance"`
	GSTIN          string       `gorm:"type:text" json:"gst_in"`
	Company        string       `gorm:"type:text" json:"company"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Ledger) TableName() string { return "ledgers" }

// TaxConfig maps a team's ledger subtrees onto pipeline roles. When a
// pointer is nil the well-known parent names above are used instead.
type TaxConfig struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	TeamID             snowflake.ID  `gorm:"not null;uniqueIndex:ux_tax_configs_team" json:"team_id"`
	VendorParentID     *snowflake.ID `json:"vendor_parent_id"`
	IGSTParentID       *snowflake.ID `json:"igst_parent_id"`
	CGSTParentID       *snowflake.ID `json:"cgst_parent_id"`
	SGSTParentID       *snowflake.ID `json:"sgst_parent_id"`
	COAParentID        *snowflake.ID `json:"chart_of_accounts_id"`
	COAExpenseParentID *snowflake.ID `json:"chart_of_accounts_expense_id"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TaxConfig) TableName() string { return "tax_configs" }
