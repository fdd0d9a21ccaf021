package plan

import (
	"github.com/ecclesiahq/ecclesia/internal/plan/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.catalog",
	fx.Provide(domain.NewCatalogFromConfig),
)
