package audit

import (
	"github.com/smallbiznis/identity/internal/audit/repository"
	"github.com/smallbiznis/identity/internal/audit/service"
	"go.uber.org/fx"
)

// Module wires the audit log writer.
var Module = fx.Module("audit",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
