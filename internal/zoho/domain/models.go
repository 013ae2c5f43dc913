package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Credential holds a team's Zoho Books OAuth state. OnboardingStatus
// flips to true once the authorization code has been exchanged for a
// refresh token; from then on only refresh grants are used.
type Credential struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID           snowflake.ID `gorm:"not null;uniqueIndex:ux_zoho_credentials_team" json:"team_id"`
	ClientID         string       `gorm:"type:text" json:"client_id"`
	ClientSecret     string       `gorm:"type:text" json:"-"`
	AccessCode       string       `gorm:"type:text" json:"-"`
	OrganisationID   string       `gorm:"type:text" json:"organisation_id"`
	RedirectURL      string       `gorm:"type:text" json:"redirect_url"`
	AccessToken      string       `gorm:"type:text" json:"-"`
	RefreshToken     string       `gorm:"type:text" json:"-"`
	OnboardingStatus bool         `gorm:"not null;default:false" json:"onboarding_status"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Credential) TableName() string { return "zoho_credentials" }

// MasterKind selects which Zoho Books master list to pull.
type MasterKind string

const (
	MasterVendors         MasterKind = "vendors"
	MasterChartOfAccounts MasterKind = "chart_of_accounts"
	MasterTaxes           MasterKind = "taxes"
)

// ValidMasterKind reports whether the path segment names a master list.
func ValidMasterKind(value string) (MasterKind, bool) {
	switch MasterKind(value) {
	case MasterVendors:
		return MasterVendors, true
	case MasterChartOfAccounts:
		return MasterChartOfAccounts, true
	case MasterTaxes:
		return MasterTaxes, true
	}
	return "", false
}

// FetchResult summarizes one master pull.
type FetchResult struct {
	Kind     MasterKind `json:"kind"`
	Fetched  int        `json:"fetched"`
	Imported int        `json:"imported"`
}

// UpdateCredentialsRequest replaces the team's connection settings.
type UpdateCredentialsRequest struct {
	ClientID       string `json:"client_id" validate:"required"`
	ClientSecret   string `json:"client_secret" validate:"required"`
	AccessCode     string `json:"access_code"`
	OrganisationID string `json:"organisation_id" validate:"required"`
	RedirectURL    string `json:"redirect_url" validate:"omitempty,url"`
}

// Service manages Zoho credentials, token grants and master imports.
type Service interface {
	Credentials(ctx context.Context, teamID snowflake.ID) (*Credential, error)
	UpdateCredentials(ctx context.Context, teamID snowflake.ID, req UpdateCredentialsRequest) (*Credential, error)

	// GenerateToken runs the authorization_code grant on first use and
	// the refresh_token grant afterwards, persisting whatever tokens
	// come back.
	GenerateToken(ctx context.Context, teamID snowflake.ID) (*Credential, error)

	// FetchMasters pulls one master list into the ledger directory,
	// skipping rows already imported.
	FetchMasters(ctx context.Context, teamID snowflake.ID, kind MasterKind) (*FetchResult, error)

	// RefreshAllTokens refreshes every onboarded credential; used by the
	// keep-warm job.
	RefreshAllTokens(ctx context.Context) error
}

var (
	ErrCredentialsNotFound = errors.New("zoho_credentials_not_found")
	ErrNotOnboarded        = errors.New("zoho_not_onboarded")
	ErrTokenGrantFailed    = errors.New("zoho_token_grant_failed")
	ErrMastersFetchFailed  = errors.New("zoho_masters_fetch_failed")
)
