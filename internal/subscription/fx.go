package subscription

import (
	"github.com/fanstack/fanstack/internal/subscription/repository"
	"github.com/fanstack/fanstack/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
