package invitation

import (
	"github.com/smallbiznis/identity/internal/invitation/repository"
	"github.com/smallbiznis/identity/internal/invitation/service"
	"go.uber.org/fx"
)

// Module wires the invitation lifecycle.
var Module = fx.Module("invitation",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
