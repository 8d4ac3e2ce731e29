package messaging

import (
	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	"github.com/fanstack/fanstack/internal/messaging/repository"
	"github.com/fanstack/fanstack/internal/messaging/service"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("messaging.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc messagingdomain.Service) tipdomain.Notifier { return svc }),
)
