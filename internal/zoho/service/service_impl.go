package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	"github.com/snowdenHM/bill/internal/zoho/client"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenExchanger runs one OAuth grant.
type TokenExchanger interface {
	Exchange(ctx context.Context, cred *zohodomain.Credential) (*client.TokenResponse, error)
}

// MastersAPI reads master lists from Zoho Books.
type MastersAPI interface {
	Contacts(ctx context.Context, cred *zohodomain.Credential) ([]client.Contact, error)
	ChartOfAccounts(ctx context.Context, cred *zohodomain.Credential) ([]client.Account, error)
	Taxes(ctx context.Context, cred *zohodomain.Credential) ([]client.Tax, error)
}

// Params defines dependencies for the Zoho settings service.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Tokens  TokenExchanger
	Books   MastersAPI
	Ledgers ledgerdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	validate *validator.Validate
	tokens   TokenExchanger
	books    MastersAPI
	ledgers  ledgerdomain.Service
}

func NewService(p Params) zohodomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("zoho.service"),
		genID:    p.GenID,
		validate: validator.New(),
		tokens:   p.Tokens,
		books:    p.Books,
		ledgers:  p.Ledgers,
	}
}

func (s *Service) Credentials(ctx context.Context, teamID snowflake.ID) (*zohodomain.Credential, error) {
	var cred zohodomain.Credential
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, zohodomain.ErrCredentialsNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// UpdateCredentials replaces the connection settings and resets the
// onboarding state so the next token call runs the code grant again.
func (s *Service) UpdateCredentials(ctx context.Context, teamID snowflake.ID, req zohodomain.UpdateCredentialsRequest) (*zohodomain.Credential, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid_credentials_request: %w", err)
	}

	now := time.Now().UTC()
	var result *zohodomain.Credential
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cred zohodomain.Credential
		err := tx.Where("team_id = ?", teamID).First(&cred).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cred = zohodomain.Credential{
				ID:        s.genID.Generate(),
				TeamID:    teamID,
				CreatedAt: now,
			}
		}
		cred.ClientID = req.ClientID
		cred.ClientSecret = req.ClientSecret
		cred.AccessCode = req.AccessCode
		cred.OrganisationID = req.OrganisationID
		cred.RedirectURL = req.RedirectURL
		cred.OnboardingStatus = false
		cred.AccessToken = ""
		cred.RefreshToken = ""
		cred.UpdatedAt = now

		if err := tx.Save(&cred).Error; err != nil {
			return err
		}
		result = &cred
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GenerateToken(ctx context.Context, teamID snowflake.ID) (*zohodomain.Credential, error) {
	cred, err := s.Credentials(ctx, teamID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Exchange(ctx, cred)
	if err != nil {
		return nil, err
	}

	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
		cred.OnboardingStatus = true
	}
	cred.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(cred).Error; err != nil {
		return nil, err
	}
	s.log.Info("zoho token updated",
		zap.String("team_id", teamID.String()),
		zap.Bool("onboarded", cred.OnboardingStatus),
	)
	return cred, nil
}

// FetchMasters pulls one master list into the ledger directory under the
// conventional parent groups, so Zoho vendors take part in the same
// name matching as Tally ledgers. Rows already imported, identified by
// their Zoho id, are skipped.
func (s *Service) FetchMasters(ctx context.Context, teamID snowflake.ID, kind zohodomain.MasterKind) (*zohodomain.FetchResult, error) {
	cred, err := s.Credentials(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !cred.OnboardingStatus {
		return nil, zohodomain.ErrNotOnboarded
	}

	var entries []ledgerdomain.ImportEntry
	var fetched int

	switch kind {
	case zohodomain.MasterVendors:
		contacts, err := s.books.Contacts(ctx, cred)
		if err != nil {
			return nil, err
		}
		fetched = len(contacts)
		for _, contact := range contacts {
			if contact.ContactType != "vendor" {
				continue
			}
			entries = append(entries, ledgerdomain.ImportEntry{
				MasterID: contact.ContactID,
				Name:     contact.CompanyName,
				Parent:   ledgerdomain.ParentSundryCreditors,
				GSTIN:    contact.GSTNo,
			})
		}
	case zohodomain.MasterChartOfAccounts:
		accounts, err := s.books.ChartOfAccounts(ctx, cred)
		if err != nil {
			return nil, err
		}
		fetched = len(accounts)
		for _, account := range accounts {
			entries = append(entries, ledgerdomain.ImportEntry{
				MasterID: account.AccountID,
				Name:     account.AccountName,
				Parent:   ledgerdomain.ParentChartOfAccounts,
			})
		}
	case zohodomain.MasterTaxes:
		taxes, err := s.books.Taxes(ctx, cred)
		if err != nil {
			return nil, err
		}
		fetched = len(taxes)
		for _, tax := range taxes {
			entries = append(entries, ledgerdomain.ImportEntry{
				MasterID: tax.TaxID,
				Name:     tax.TaxName,
				Parent:   ledgerdomain.ParentDutiesAndTaxes,
				Alias:    tax.TaxPercentage.String(),
			})
		}
	default:
		return nil, fmt.Errorf("%w: unknown master kind %q", zohodomain.ErrMastersFetchFailed, kind)
	}

	fresh, err := s.dropExisting(ctx, teamID, entries)
	if err != nil {
		return nil, err
	}

	imported := 0
	if len(fresh) > 0 {
		created, err := s.ledgers.BulkImport(ctx, teamID, fresh)
		if err != nil {
			return nil, err
		}
		imported = len(created)
	}

	s.log.Info("zoho masters fetched",
		zap.String("team_id", teamID.String()),
		zap.String("kind", string(kind)),
		zap.Int("fetched", fetched),
		zap.Int("imported", imported),
	)
	return &zohodomain.FetchResult{Kind: kind, Fetched: fetched, Imported: imported}, nil
}

func (s *Service) dropExisting(ctx context.Context, teamID snowflake.ID, entries []ledgerdomain.ImportEntry) ([]ledgerdomain.ImportEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.MasterID)
	}

	var existing []string
	err := s.db.WithContext(ctx).
		Model(&ledgerdomain.Ledger{}).
		Where("team_id = ? AND master_id IN ?", teamID, ids).
		Pluck("master_id", &existing).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	fresh := make([]ledgerdomain.ImportEntry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.MasterID]; ok {
			continue
		}
		fresh = append(fresh, entry)
	}
	return fresh, nil
}

// RefreshAllTokens refreshes every onboarded credential, retrying each
// one once. Failures are logged and counted but do not stop the sweep.
func (s *Service) RefreshAllTokens(ctx context.Context) error {
	var creds []zohodomain.Credential
	err := s.db.WithContext(ctx).
		Where("onboarding_status = ?", true).
		Find(&creds).Error
	if err != nil {
		return err
	}

	for i := range creds {
		cred := &creds[i]
		token, err := s.tokens.Exchange(ctx, cred)
		if err != nil {
			metrics.Pipeline().TokenRefreshRetry("zoho")
			token, err = s.tokens.Exchange(ctx, cred)
		}
		if err != nil {
			s.log.Warn("token refresh failed",
				zap.String("team_id", cred.TeamID.String()),
				zap.Error(err),
			)
			continue
		}

		cred.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			cred.RefreshToken = token.RefreshToken
		}
		cred.UpdatedAt = time.Now().UTC()
		if err := s.db.WithContext(ctx).Save(cred).Error; err != nil {
			s.log.Warn("token persist failed",
				zap.String("team_id", cred.TeamID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}
