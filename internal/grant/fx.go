package grant

import (
	"github.com/ecclesiahq/ecclesia/internal/grant/repository"
	"github.com/ecclesiahq/ecclesia/internal/grant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("grant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
