package gateway

import (
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	"github.com/fanstack/fanstack/internal/gateway/domain"
	"github.com/fanstack/fanstack/internal/gateway/fake"
	stripegw "github.com/fanstack/fanstack/internal/gateway/stripe"
	"github.com/fanstack/fanstack/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the payment gateway selected by configuration.
var Module = fx.Module("gateway",
	fx.Provide(New),
)

type Param struct {
	fx.In

	Config  config.Config
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func New(p Param) domain.Gateway {
	if p.Config.GatewayMode == config.GatewayModeFake {
		p.Log.Warn("payment gateway running in fake mode")
		return fake.New(p.Clock)
	}

	return stripegw.New(stripegw.Config{
		SecretKey: p.Config.StripeSecretKey,
		ProductID: p.Config.StripeProductID,
		Timeout:   time.Duration(p.Config.GatewayTimeout) * time.Second,
	}, p.Metrics)
}
