package account

import (
	"github.com/fanstack/fanstack/internal/account/repository"
	"github.com/fanstack/fanstack/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
