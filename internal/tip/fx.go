package tip

import (
	"github.com/fanstack/fanstack/internal/tip/repository"
	"github.com/fanstack/fanstack/internal/tip/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tip.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
