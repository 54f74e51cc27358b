package mfa

import "go.uber.org/fx"

// Module wires the MFA enrollment engine.
var Module = fx.Module("mfa",
	fx.Provide(NewService),
)
