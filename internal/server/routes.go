package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
)

// RegisterAPIRoutes mounts every tenant-scoped route. Backend and kind
// are literal path segments, matching the receiver URLs the Tally
// connector is configured with, so the bills subtree can also carry the
// literal api/v1 receiver group without wildcard conflicts.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	org := engine.Group("/org/:team", s.TeamMiddleware())

	for _, scope := range []billScope{
		{Backend: billdomain.BackendTally, Kind: billdomain.KindVendor},
		{Backend: billdomain.BackendTally, Kind: billdomain.KindExpense},
		{Backend: billdomain.BackendZoho, Kind: billdomain.KindVendor},
		{Backend: billdomain.BackendZoho, Kind: billdomain.KindExpense},
	} {
		group := org.Group(fmt.Sprintf("/bills/%s/%s", scope.Backend, scope.Kind))
		group.POST("", s.UploadBill(scope))
		group.GET("", s.ListBills(scope))
		group.GET("/:id", s.GetBillDetail)
		group.GET("/:id/file", s.GetBillFile)
		group.DELETE("/:id", s.DeleteBill)
		group.POST("/:id/analyze", s.AnalyzeBill)
		group.POST("/:id/verify", s.VerifyBill)
		group.POST("/:id/sync", s.SyncBill)
	}

	receiver := org.Group("/bills/tally/api/v1")
	receiver.POST("/ledger/", s.TallyLedgerImport)
	receiver.POST("/master/", s.TallyMasterAck)
	receiver.POST("/vendor/", s.TallyBillAck)
	receiver.POST("/expense/", s.TallyBillAck)

	settings := org.Group("/settings")
	settings.GET("/ledgers", s.ListLedgers)
	settings.GET("/ledgers/:id", s.GetLedger)
	settings.GET("/parents", s.ListParentLedgers)
	settings.GET("/tax-config", s.GetTaxConfig)
	settings.PUT("/tax-config", s.UpdateTaxConfig)

	zoho := settings.Group("/zoho")
	zoho.GET("/credentials", s.GetZohoCredentials)
	zoho.PUT("/credentials", s.UpdateZohoCredentials)
	zoho.POST("/token", s.GenerateZohoToken)
	zoho.POST("/masters/:kind", s.FetchZohoMasters)

	org.GET("/exports/synced-bills.xlsx", s.ExportSyncedBills)
}
