package gateway

import (
	"github.com/ecclesiahq/ecclesia/internal/gateway/asaas"
	"github.com/ecclesiahq/ecclesia/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(asaas.Provide),
	fx.Provide(service.NewService),
)
