package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	verificationdomain "github.com/snowdenHM/bill/internal/verification/domain"
)

// billScope pins a handler to one backend/kind pair. Routes are literal
// per pair, so the pair arrives via closure instead of path params.
type billScope struct {
	Backend billdomain.Backend
	Kind    billdomain.Kind
}

func parseBucket(raw string) billdomain.StatusBucket {
	switch billdomain.StatusBucket(strings.TrimSpace(raw)) {
	case billdomain.BucketDraft:
		return billdomain.BucketDraft
	case billdomain.BucketAnalyzed:
		return billdomain.BucketAnalyzed
	case billdomain.BucketSynced:
		return billdomain.BucketSynced
	default:
		return billdomain.BucketAll
	}
}

func parseID(c *gin.Context, param string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(param)))
	if err != nil {
		AbortWithError(c, billdomain.ErrBillNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) UploadBill(scope billScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		file, err := header.Open()
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		fileType := billdomain.FileType(strings.TrimSpace(c.PostForm("fileType")))
		if fileType == "" {
			fileType = billdomain.FileTypeSingle
		}

		team := currentTeam(c)
		result, err := s.intake.Upload(c.Request.Context(), team.ID, billdomain.UploadRequest{
			Backend:  scope.Backend,
			Kind:     scope.Kind,
			FileName: header.Filename,
			FileType: fileType,
			Data:     data,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": result.Bills, "split": result.Split})
	}
}

func (s *Server) ListBills(scope billScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		team := currentTeam(c)
		bills, err := s.intake.List(c.Request.Context(), team.ID, scope.Backend, scope.Kind, parseBucket(c.Query("bucket")))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": bills})
	}
}

func (s *Server) GetBillDetail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	team := currentTeam(c)
	detail, err := s.intake.Detail(c.Request.Context(), team.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// GetBillFile returns the stored file location instead of streaming it;
// the media directory is served separately.
func (s *Server) GetBillFile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	team := currentTeam(c)
	bill, err := s.intake.Get(c.Request.Context(), team.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"id":   bill.ID,
			"name": bill.Name,
			"url":  s.store.URL(bill.FilePath),
		},
	})
}

func (s *Server) DeleteBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	team := currentTeam(c)
	if err := s.intake.Delete(c.Request.Context(), team.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bill deleted"})
}

func (s *Server) AnalyzeBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	team := currentTeam(c)
	detail, err := s.analysis.Analyze(c.Request.Context(), team.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail, "message": "bill analyzed"})
}

func (s *Server) VerifyBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req verificationdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team := currentTeam(c)
	detail, err := s.verification.Verify(c.Request.Context(), team.ID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail, "message": "bill verified"})
}

func (s *Server) SyncBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	team := currentTeam(c)
	bill, err := s.syncer.Sync(c.Request.Context(), team.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bill, "message": "bill synced"})
}
