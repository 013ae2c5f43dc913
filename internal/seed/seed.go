package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
	"gorm.io/gorm"
)

const (
	defaultTeamName = "Main"
	defaultTeamSlug = "main"
)

// EnsureMainTeam seeds the default tenant and its well-known parent
// ledger groups for startup bootstrap.
func EnsureMainTeam(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team teamdomain.Team
		err := tx.Where("slug = ?", defaultTeamSlug).First(&team).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			team = teamdomain.Team{
				ID:   node.Generate(),
				Name: defaultTeamName,
				Slug: defaultTeamSlug,
			}
			if err := tx.Create(&team).Error; err != nil {
				return err
			}
		}

		for _, name := range []string{
			ledgerdomain.ParentSundryCreditors,
			ledgerdomain.ParentDutiesAndTaxes,
			ledgerdomain.ParentChartOfAccounts,
		} {
			var parent ledgerdomain.ParentLedger
			err := tx.Where("team_id = ? AND name = ?", team.ID, name).First(&parent).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			parent = ledgerdomain.ParentLedger{
				ID:     node.Generate(),
				TeamID: team.ID,
				Name:   name,
			}
			if err := tx.Create(&parent).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
