package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
)

type ledgerImportRequest struct {
	Ledgers []ledgerdomain.ImportEntry `json:"LEDGER"`
}

// TallyLedgerImport is the receiver endpoint the Tally connector posts
// master ledgers to. The import is atomic: one bad row rejects the batch.
func (s *Server) TallyLedgerImport(c *gin.Context) {
	var req ledgerImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team := currentTeam(c)
	created, err := s.ledgers.BulkImport(c.Request.Context(), team.ID, req.Ledgers)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created, "message": "ledgers imported"})
}

// TallyMasterAck acknowledges connector master pushes that carry nothing
// the pipeline consumes yet.
func (s *Server) TallyMasterAck(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "master data received"})
}

// TallyBillAck is the receiver side of the sync push: the connector polls
// these bills from the customer network, so accepting is enough.
func (s *Server) TallyBillAck(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bill received"})
}

func (s *Server) ListLedgers(c *gin.Context) {
	team := currentTeam(c)

	if parent := c.Query("parent"); parent != "" {
		ledgers, err := s.ledgers.LedgersUnderParentName(c.Request.Context(), team.ID, parent)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ledgers})
		return
	}

	ledgers, err := s.ledgers.List(c.Request.Context(), team.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ledgers})
}

func (s *Server) GetLedger(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ledgerdomain.ErrLedgerNotFound)
		return
	}
	team := currentTeam(c)
	ledger, err := s.ledgers.Get(c.Request.Context(), team.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ledger})
}

func (s *Server) ListParentLedgers(c *gin.Context) {
	team := currentTeam(c)
	parents, err := s.ledgers.ListParents(c.Request.Context(), team.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": parents})
}

func (s *Server) GetTaxConfig(c *gin.Context) {
	team := currentTeam(c)
	cfg, err := s.ledgers.TaxConfig(c.Request.Context(), team.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) UpdateTaxConfig(c *gin.Context) {
	var req ledgerdomain.UpdateTaxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	team := currentTeam(c)
	cfg, err := s.ledgers.UpdateTaxConfig(c.Request.Context(), team.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}
