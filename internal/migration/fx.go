package migration

import (
	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/fanstack/fanstack/internal/config"
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// non-postgres targets (sqlite tests, mysql) build their
			// schema from the gorm models
			return conn.AutoMigrate(
				&accountdomain.User{},
				&creatordomain.Creator{},
				&subscriptiondomain.Subscription{},
				&subscriptiondomain.SubscriptionHistory{},
				&ledgerdomain.Earning{},
				&ledgerdomain.Transaction{},
				&tipdomain.Tip{},
				&payoutdomain.Payout{},
				&contentdomain.Post{},
				&contentdomain.Media{},
				&contentdomain.PostLike{},
				&contentdomain.Comment{},
				&messagingdomain.Conversation{},
				&messagingdomain.Message{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
