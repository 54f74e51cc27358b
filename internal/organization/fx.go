package organization

import (
	"github.com/smallbiznis/identity/internal/organization/repository"
	"github.com/smallbiznis/identity/internal/organization/service"
	"go.uber.org/fx"
)

// Module wires organization membership and policy checks.
var Module = fx.Module("organization",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
