package ledger

import (
	"github.com/fanstack/fanstack/internal/ledger/repository"
	"github.com/fanstack/fanstack/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
