package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
)

// RawParty is the sender or recipient block of an extracted invoice.
type RawParty struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RawLineItem is one extracted line. Numbers stay as json.Number because
// the model emits them as either strings or floats.
type RawLineItem struct {
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	Price       json.Number `json:"price"`
}

// RawInvoice is the canonical extraction shape persisted on the bill.
type RawInvoice struct {
	InvoiceNumber string        `json:"invoiceNumber"`
	DateIssued    string        `json:"dateIssued"`
	DueDate       string        `json:"dueDate"`
	From          RawParty      `json:"from"`
	To            RawParty      `json:"to"`
	Items         []RawLineItem `json:"items"`
	Total         json.Number   `json:"total"`
	IGST          json.Number   `json:"igst"`
	CGST          json.Number   `json:"cgst"`
	SGST          json.Number   `json:"sgst"`
}

// Extractor turns one invoice image into the model's raw JSON document.
type Extractor interface {
	Extract(ctx context.Context, imageJPEG []byte) ([]byte, error)
}

// Service runs the analysis stage for a draft bill.
type Service interface {
	Analyze(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.BillDetail, error)
}

var (
	ErrExtractionFailed    = errors.New("ai_extraction_failed")
	ErrMalformedExtraction = errors.New("malformed_extraction")
	ErrBillFileRead        = errors.New("bill_file_read_failed")
)

// Decimal converts a raw number to a decimal, treating malformed or missing
// values as zero the way the extraction stage tolerates partial documents.
func Decimal(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int converts a raw quantity to an int, truncating fractional counts.
func Int(n json.Number) int {
	if n == "" {
		return 0
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0
	}
	return int(f)
}
