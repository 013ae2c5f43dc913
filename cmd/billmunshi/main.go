package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/snowdenHM/bill/internal/analysis"
	"github.com/snowdenHM/bill/internal/bill"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/ledger"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/logger"
	"github.com/snowdenHM/bill/internal/scheduler"
	"github.com/snowdenHM/bill/internal/seed"
	"github.com/snowdenHM/bill/internal/server"
	"github.com/snowdenHM/bill/internal/storage"
	"github.com/snowdenHM/bill/internal/syncer"
	"github.com/snowdenHM/bill/internal/team/domain"
	"github.com/snowdenHM/bill/internal/verification"
	"github.com/snowdenHM/bill/internal/zoho"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"github.com/snowdenHM/bill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		storage.Module,

		ledger.Module,
		bill.Module,
		analysis.Module,
		verification.Module,
		zoho.Module,
		syncer.Module,
		scheduler.Module,

		fx.Invoke(Migrate),

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server, engine *gin.Engine) {
			s.RegisterAPIRoutes(engine)
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// Migrate creates the schema and seeds the default tenant.
func Migrate(conn *gorm.DB, node *snowflake.Node) error {
	if err := conn.AutoMigrate(
		&domain.Team{},
		&ledgerdomain.ParentLedger{},
		&ledgerdomain.Ledger{},
		&ledgerdomain.TaxConfig{},
		&billdomain.Bill{},
		&billdomain.AnalyzedBill{},
		&billdomain.AnalyzedProduct{},
		&billdomain.BillSequence{},
		&zohodomain.Credential{},
	); err != nil {
		return err
	}
	return seed.EnsureMainTeam(conn, node)
}
