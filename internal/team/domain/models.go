package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Team is the tenant boundary. Every pipeline row hangs off one team and
// no operation may cross it.
type Team struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_teams_slug" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

var (
	ErrTeamNotFound = errors.New("team_not_found")
	ErrInvalidSlug  = errors.New("invalid_team_slug")
)
