package auth

import (
	"github.com/smallbiznis/identity/internal/auth/repository"
	"github.com/smallbiznis/identity/internal/auth/service"
	"github.com/smallbiznis/identity/internal/auth/session"
	"go.uber.org/fx"
)

// Module wires users, sessions and the authentication flows.
var Module = fx.Module("auth",
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewSessionRepository),
	fx.Provide(session.NewManager),
	fx.Provide(service.NewService),
)
