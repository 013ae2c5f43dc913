package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
)

// TaxRole keys the resolved tax ledgers on a sync payload.
const (
	TaxRoleIGST = "igst"
	TaxRoleCGST = "cgst"
	TaxRoleSGST = "sgst"
)

// SyncPayload carries everything an adapter needs to push one verified
// bill: the records themselves plus the ledgers their references resolve
// to, so adapters never touch the database.
type SyncPayload struct {
	TeamSlug string
	Bill     billdomain.Bill
	Analyzed billdomain.AnalyzedBill
	Products []billdomain.AnalyzedProduct

	VendorLedger *ledgerdomain.Ledger
	// TaxLedgers maps the tax roles above to their resolved ledgers.
	TaxLedgers map[string]*ledgerdomain.Ledger
	// LineLedgers resolves each product's ledger reference.
	LineLedgers map[snowflake.ID]*ledgerdomain.Ledger
}

// Adapter pushes one bill to an accounting backend.
type Adapter interface {
	Backend() billdomain.Backend
	Push(ctx context.Context, payload *SyncPayload) error
}

// Service drives the final pipeline stage.
type Service interface {
	Sync(ctx context.Context, teamID, billID snowflake.ID) (*billdomain.Bill, error)
}

var (
	ErrAdapterNotFound = errors.New("sync_adapter_not_found")
	ErrSyncRejected    = errors.New("sync_rejected")
)

// RemoteError surfaces the backend's message field, falling back to a
// generic description when the response has none.
type RemoteError struct {
	Backend billdomain.Backend
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("failed to send data to %s (status %d)", e.Backend, e.Status)
}

func (e *RemoteError) Unwrap() error { return ErrSyncRejected }
