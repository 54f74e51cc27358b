package db

import "go.uber.org/fx"

// Module wires the gorm connection.
var Module = fx.Module("db",
	fx.Provide(New),
)
