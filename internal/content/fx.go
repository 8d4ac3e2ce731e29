package content

import (
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	"github.com/fanstack/fanstack/internal/content/repository"
	"github.com/fanstack/fanstack/internal/content/service"
	genericrepo "github.com/fanstack/fanstack/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("content.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(db *gorm.DB) genericrepo.Repository[contentdomain.Comment] {
		return genericrepo.ProvideStore[contentdomain.Comment](db)
	}),
	fx.Provide(service.NewService),
)
