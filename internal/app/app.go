package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Core provides the foundational modules shared across commands.
var Core = fx.Options(
	ConfigModule,
	LoggerModule,
	ObservabilityModule,
	DatabaseModule,
	OrdersModule,
)

// HTTP wires the realtime feed, the board and the HTTP transport on top of
// the core modules.
var HTTP = fx.Options(
	Core,
	RealtimeModule,
	BoardModule,
	HTTPModule,
)

// Module is the default application wiring.
var Module = fx.Options(
	HTTP,
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}),
)
