package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
)

// ProductEdit updates one existing line item. TaxLedgerID points at a tax
// ledger on the vendor path and a chart-of-accounts ledger on the expense
// path. A GSTRate like "18%" triggers per-line tax computation.
type ProductEdit struct {
	ID            snowflake.ID    `json:"id" validate:"required"`
	ItemName      string          `json:"item_name"`
	ItemDetails   string          `json:"item_details"`
	TaxLedgerID   *snowflake.ID   `json:"tax_ledger_id"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity" validate:"min=0"`
	Amount        decimal.Decimal `json:"amount"`
	GSTRate       string          `json:"gst"`
	DebitOrCredit string          `json:"debit_or_credit" validate:"omitempty,oneof=credit debit"`
}

// VerifyRequest carries the human-reviewed header and line edits.
type VerifyRequest struct {
	VendorID     *snowflake.ID   `json:"vendor_id"`
	BillNo       string          `json:"bill_no" validate:"max=200"`
	BillDate     string          `json:"bill_date" validate:"omitempty,datetime=2006-01-02"`
	Note         string          `json:"note"`
	IGST         decimal.Decimal `json:"igst"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGSTLedgerID *snowflake.ID   `json:"igst_ledger_id"`
	CGSTLedgerID *snowflake.ID   `json:"cgst_ledger_id"`
	SGSTLedgerID *snowflake.ID   `json:"sgst_ledger_id"`
	Products     []ProductEdit   `json:"products" validate:"dive"`
}

// Service reconciles line-level GST against the bill header and moves the
// bill to Verified. Line edits always persist; the status transition and
// header update happen only when reconciliation passes.
type Service interface {
	Verify(ctx context.Context, teamID, billID snowflake.ID, req VerifyRequest) (*billdomain.BillDetail, error)
}

var (
	ErrTaxMismatch     = errors.New("tax_mismatch")
	ErrInvalidRequest  = errors.New("invalid_verification_request")
	ErrUnknownProduct  = errors.New("unknown_product_id")
	ErrInvalidLedgerID = errors.New("invalid_ledger_id")
)

// MismatchError reports the reconciliation failure with both sides of the
// comparison so the reviewer can see what to fix.
type MismatchError struct {
	GSTType     billdomain.GSTType
	ProductIGST decimal.Decimal
	ProductCGST decimal.Decimal
	ProductSGST decimal.Decimal
	BillIGST    decimal.Decimal
	BillCGST    decimal.Decimal
	BillSGST    decimal.Decimal
}

func (e *MismatchError) Error() string {
	if e.GSTType == billdomain.GSTInterState {
		return fmt.Sprintf("IGST mismatch: sum of product IGST = %s, bill IGST = %s",
			e.ProductIGST, e.BillIGST)
	}
	return fmt.Sprintf("CGST/SGST mismatch: products CGST/SGST = %s/%s, bill CGST/SGST = %s/%s",
		e.ProductCGST, e.ProductSGST, e.BillCGST, e.BillSGST)
}

func (e *MismatchError) Unwrap() error { return ErrTaxMismatch }
