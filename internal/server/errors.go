package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
	verificationdomain "github.com/snowdenHM/bill/internal/verification/domain"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
)

type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.code }

func invalidRequestError() error {
	return &apiError{status: http.StatusBadRequest, code: "invalid_request", message: "invalid request"}
}

// statusFor maps domain sentinels onto HTTP statuses. Anything unmapped
// is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, billdomain.ErrBillNotFound),
		errors.Is(err, billdomain.ErrAnalyzedNotFound),
		errors.Is(err, teamdomain.ErrTeamNotFound),
		errors.Is(err, ledgerdomain.ErrLedgerNotFound),
		errors.Is(err, ledgerdomain.ErrParentNotFound),
		errors.Is(err, zohodomain.ErrCredentialsNotFound):
		return http.StatusNotFound

	case errors.Is(err, billdomain.ErrUnsupportedFileExt),
		errors.Is(err, billdomain.ErrPDFNotAllowed),
		errors.Is(err, billdomain.ErrEmptyFile),
		errors.Is(err, billdomain.ErrInvalidFileType),
		errors.Is(err, billdomain.ErrBillNotAnalyzed),
		errors.Is(err, billdomain.ErrBillNotVerified),
		errors.Is(err, billdomain.ErrBillAlreadyAnalyzed),
		errors.Is(err, verificationdomain.ErrInvalidRequest),
		errors.Is(err, verificationdomain.ErrUnknownProduct),
		errors.Is(err, verificationdomain.ErrInvalidLedgerID),
		errors.Is(err, ledgerdomain.ErrEmptyImport),
		errors.Is(err, ledgerdomain.ErrInvalidParentID),
		errors.Is(err, zohodomain.ErrNotOnboarded),
		errors.Is(err, teamdomain.ErrInvalidSlug):
		return http.StatusBadRequest

	case errors.Is(err, verificationdomain.ErrTaxMismatch):
		return http.StatusConflict

	case errors.Is(err, syncerdomain.ErrAdapterNotFound):
		return http.StatusNotImplemented

	case errors.Is(err, billdomain.ErrPDFSplit),
		errors.Is(err, analysisdomain.ErrExtractionFailed),
		errors.Is(err, analysisdomain.ErrMalformedExtraction),
		errors.Is(err, analysisdomain.ErrBillFileRead),
		errors.Is(err, syncerdomain.ErrSyncRejected),
		errors.Is(err, zohodomain.ErrTokenGrantFailed),
		errors.Is(err, zohodomain.ErrMastersFetchFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError renders one JSON error payload for every failure path.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.status, gin.H{"error": api.code, "message": api.message})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": "internal_error", "message": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code(err), "message": err.Error()})
}

func code(err error) string {
	root := err
	for {
		unwrapped := errors.Unwrap(root)
		if unwrapped == nil {
			return root.Error()
		}
		root = unwrapped
	}
}
