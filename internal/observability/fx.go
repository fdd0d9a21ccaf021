package observability

import "go.uber.org/fx"

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewMetrics),
	fx.Invoke(RegisterTracing),
	fx.Invoke(RegisterSentry),
)
