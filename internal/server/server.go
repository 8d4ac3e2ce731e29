package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstack/fanstack/internal/account"
	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	"github.com/fanstack/fanstack/internal/content"
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	"github.com/fanstack/fanstack/internal/creator"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	"github.com/fanstack/fanstack/internal/gateway"
	"github.com/fanstack/fanstack/internal/ledger"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	"github.com/fanstack/fanstack/internal/messaging"
	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	"github.com/fanstack/fanstack/internal/migration"
	"github.com/fanstack/fanstack/internal/observability"
	obslogger "github.com/fanstack/fanstack/internal/observability/logger"
	obsmetrics "github.com/fanstack/fanstack/internal/observability/metrics"
	"github.com/fanstack/fanstack/internal/payout"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	"github.com/fanstack/fanstack/internal/ratelimit"
	"github.com/fanstack/fanstack/internal/scheduler"
	"github.com/fanstack/fanstack/internal/subscription"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/tip"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	config.PlatformModule,
	clock.Module,
	observability.Module,
	db.Module,
	migration.Module,
	gateway.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	account.Module,
	creator.Module,
	ledger.Module,
	subscription.Module,
	tip.Module,
	payout.Module,
	content.Module,
	messaging.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", m.Handler())

	return r
}

func registerGin(obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, m)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node

	accountSvc      accountdomain.Service
	creatorSvc      creatordomain.Service
	subscriptionSvc subscriptiondomain.Service
	ledgerSvc       ledgerdomain.Service
	tipSvc          tipdomain.Service
	payoutSvc       payoutdomain.Service
	contentSvc      contentdomain.Service
	messagingSvc    messagingdomain.Service

	writeLimiter *ratelimit.WriteLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node

	AccountSvc      accountdomain.Service
	CreatorSvc      creatordomain.Service
	SubscriptionSvc subscriptiondomain.Service
	LedgerSvc       ledgerdomain.Service
	TipSvc          tipdomain.Service
	PayoutSvc       payoutdomain.Service
	ContentSvc      contentdomain.Service
	MessagingSvc    messagingdomain.Service

	WriteLimiter *ratelimit.WriteLimiter
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		accountSvc:      p.AccountSvc,
		creatorSvc:      p.CreatorSvc,
		subscriptionSvc: p.SubscriptionSvc,
		ledgerSvc:       p.LedgerSvc,
		tipSvc:          p.TipSvc,
		payoutSvc:       p.PayoutSvc,
		contentSvc:      p.ContentSvc,
		messagingSvc:    p.MessagingSvc,
		writeLimiter:    p.WriteLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.Identity())

	// -------- Accounts --------
	api.POST("/accounts", s.RegisterAccount)
	api.GET("/accounts/:id", s.GetAccountByID)

	// -------- Creators --------
	api.GET("/creators", s.ListCreators)
	api.POST("/creators", s.RequireUser(), s.CreateCreatorProfile)
	api.GET("/creators/:id", s.GetCreatorByID)
	api.PATCH("/creators/:id", s.RequireUser(), s.UpdateCreatorProfile)
	api.GET("/creators/:id/posts", s.ListCreatorPosts)
	api.GET("/creators/:id/tips", s.RequireUser(), s.ListCreatorTips)
	api.GET("/creators/:id/earnings", s.RequireUser(), s.GetCreatorEarningsSummary)
	api.GET("/creators/:id/earnings/entries", s.RequireUser(), s.ListCreatorEarnings)
	api.GET("/creators/:id/payouts", s.RequireUser(), s.ListCreatorPayouts)

	// -------- Subscriptions --------
	api.POST("/subscriptions", s.RequireUser(), s.WriteRateLimit("subscription.create"), s.CreateSubscription)
	api.GET("/subscriptions", s.RequireUser(), s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.RequireUser(), s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/cancel", s.RequireUser(), s.CancelSubscription)
	api.POST("/subscriptions/:id/reactivate", s.RequireUser(), s.ReactivateSubscription)
	api.GET("/subscriptions/:id/history", s.RequireUser(), s.GetSubscriptionHistory)

	// -------- Tips --------
	api.POST("/tips", s.RequireUser(), s.WriteRateLimit("tip.create"), s.CreateTip)
	api.GET("/tips/:id", s.RequireUser(), s.GetTipByID)

	// -------- Payouts --------
	api.GET("/payouts/:id", s.RequireUser(), s.GetPayoutByID)

	// -------- Content --------
	api.POST("/posts", s.RequireUser(), s.CreatePost)
	api.GET("/posts/:id", s.RequireUser(), s.GetPost)
	api.PATCH("/posts/:id", s.RequireUser(), s.UpdatePost)
	api.DELETE("/posts/:id", s.RequireUser(), s.DeletePost)
	api.POST("/posts/:id/like", s.RequireUser(), s.LikePost)
	api.DELETE("/posts/:id/like", s.RequireUser(), s.UnlikePost)
	api.POST("/posts/:id/comments", s.RequireUser(), s.AddComment)
	api.GET("/posts/:id/comments", s.RequireUser(), s.ListComments)

	// -------- Messaging --------
	api.POST("/conversations", s.RequireUser(), s.StartConversation)
	api.GET("/conversations", s.RequireUser(), s.ListConversations)
	api.GET("/conversations/:id/messages", s.RequireUser(), s.ListMessages)
	api.POST("/conversations/:id/messages", s.RequireUser(), s.SendMessage)
	api.POST("/conversations/:id/read", s.RequireUser(), s.MarkConversationRead)
	api.GET("/conversations/:id/unread", s.RequireUser(), s.GetUnreadCount)
}

// Webhook routes carry provider notifications already normalized by the
// gateway adapter. Signature verification happens upstream.
func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")

	hooks.POST("/subscriptions/renewed", s.HandleSubscriptionRenewed)
	hooks.POST("/subscriptions/payment-failed", s.HandleSubscriptionPaymentFailed)
	hooks.POST("/tips/completed", s.HandleTipCompleted)
	hooks.POST("/tips/failed", s.HandleTipFailed)
	hooks.POST("/tips/refunded", s.HandleTipRefunded)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/payouts/run-batch", s.RunPayoutBatch)
	admin.POST("/payouts/process-pending", s.ProcessPendingPayouts)
	admin.POST("/subscriptions/expire-due", s.ExpireDueSubscriptions)
}
