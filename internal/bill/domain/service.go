package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// UploadRequest is one intake submission.
type UploadRequest struct {
	Backend  Backend
	Kind     Kind
	FileName string
	FileType FileType
	Data     []byte
}

// UploadResult reports what intake committed. A multi-page PDF yields one
// bill per page; everything else exactly one.
type UploadResult struct {
	Bills []Bill
	// Split is true when the upload was fanned out per PDF page.
	Split bool
}

// BillDetail bundles a bill with its analyzed record and line items.
type BillDetail struct {
	Bill     Bill
	Analyzed *AnalyzedBill
	Products []AnalyzedProduct
}

// StatusBucket names the listing views.
type StatusBucket string

const (
	BucketAll      StatusBucket = "all"
	BucketDraft    StatusBucket = "draft"
	BucketAnalyzed StatusBucket = "analyzed"
	BucketSynced   StatusBucket = "synced"
)

// IntakeService accepts uploads, lists bills and deletes them. All methods
// are team-scoped through ctx (orgcontext).
type IntakeService interface {
	Upload(ctx context.Context, teamID snowflake.ID, req UploadRequest) (*UploadResult, error)
	List(ctx context.Context, teamID snowflake.ID, backend Backend, kind Kind, bucket StatusBucket) ([]Bill, error)
	Get(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*Bill, error)
	Detail(ctx context.Context, teamID snowflake.ID, id snowflake.ID) (*BillDetail, error)
	Delete(ctx context.Context, teamID snowflake.ID, id snowflake.ID) error

	// NextName atomically reserves the next display name for the prefix.
	NextName(ctx context.Context, teamID snowflake.ID, backend Backend, kind Kind) (string, error)
}

var (
	ErrBillNotFound        = errors.New("bill_not_found")
	ErrUnsupportedFileExt  = errors.New("unsupported_file_extension")
	ErrPDFNotAllowed       = errors.New("pdf_not_allowed_for_single_invoice")
	ErrEmptyFile           = errors.New("empty_file")
	ErrInvalidFileType     = errors.New("invalid_file_type")
	ErrPDFSplit            = errors.New("pdf_split_failed")
	ErrBillNotAnalyzed     = errors.New("bill_not_analyzed")
	ErrBillNotVerified     = errors.New("bill_not_verified")
	ErrBillAlreadyAnalyzed = errors.New("bill_already_analyzed")
	ErrAnalyzedNotFound    = errors.New("analyzed_bill_not_found")
)
