package prorata

import (
	"github.com/ecclesiahq/ecclesia/internal/prorata/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prorata.service",
	fx.Provide(service.NewService),
)
