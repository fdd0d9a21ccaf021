package church

import (
	"github.com/ecclesiahq/ecclesia/internal/church/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("church.repository",
	fx.Provide(repository.Provide),
)
