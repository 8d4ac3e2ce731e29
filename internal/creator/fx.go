package creator

import (
	"github.com/fanstack/fanstack/internal/creator/repository"
	"github.com/fanstack/fanstack/internal/creator/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creator.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
