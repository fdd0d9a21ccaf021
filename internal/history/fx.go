package history

import (
	"github.com/ecclesiahq/ecclesia/internal/history/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("history.repository",
	fx.Provide(repository.Provide),
)
