package payout

import (
	"github.com/fanstack/fanstack/internal/payout/repository"
	"github.com/fanstack/fanstack/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
