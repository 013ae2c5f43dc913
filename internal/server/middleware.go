package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snowdenHM/bill/internal/orgcontext"
	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
	"gorm.io/gorm"
)

const teamContextKey = "team"

// TeamMiddleware resolves the :team slug to a tenant and stores it on both
// the gin context and the request context. An unknown slug is a 404 so
// tenants cannot be probed apart from missing routes.
func (s *Server) TeamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.TrimSpace(c.Param("team"))
		if slug == "" {
			AbortWithError(c, teamdomain.ErrInvalidSlug)
			return
		}

		var team teamdomain.Team
		err := s.db.WithContext(c.Request.Context()).
			Where("slug = ?", slug).
			First(&team).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortWithError(c, teamdomain.ErrTeamNotFound)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(teamContextKey, team)
		c.Request = c.Request.WithContext(orgcontext.WithTeam(c.Request.Context(), team))
		c.Next()
	}
}

// currentTeam returns the tenant resolved by TeamMiddleware.
func currentTeam(c *gin.Context) teamdomain.Team {
	team, _ := c.MustGet(teamContextKey).(teamdomain.Team)
	return team
}
