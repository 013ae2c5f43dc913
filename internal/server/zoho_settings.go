package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
)

func (s *Server) GetZohoCredentials(c *gin.Context) {
	team := currentTeam(c)
	cred, err := s.zoho.Credentials(c.Request.Context(), team.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cred})
}

func (s *Server) UpdateZohoCredentials(c *gin.Context) {
	var req zohodomain.UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	team := currentTeam(c)
	cred, err := s.zoho.UpdateCredentials(c.Request.Context(), team.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cred})
}

func (s *Server) GenerateZohoToken(c *gin.Context) {
	team := currentTeam(c)
	cred, err := s.zoho.GenerateToken(c.Request.Context(), team.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cred, "message": "token generated"})
}

func (s *Server) FetchZohoMasters(c *gin.Context) {
	kind, ok := zohodomain.ValidMasterKind(c.Param("kind"))
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	team := currentTeam(c)
	result, err := s.zoho.FetchMasters(c.Request.Context(), team.ID, kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
