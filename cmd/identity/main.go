package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/audit"
	"github.com/smallbiznis/identity/internal/auth"
	authdomain "github.com/smallbiznis/identity/internal/auth/domain"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/invitation"
	invitationdomain "github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/logger"
	"github.com/smallbiznis/identity/internal/mfa"
	"github.com/smallbiznis/identity/internal/migration"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization"
	"github.com/smallbiznis/identity/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		audit.Module,
		organization.Module,
		auth.Module,
		mfa.Module,
		invitation.Module,

		fx.Invoke(func(log *zap.Logger, cfg config.Config, _ authdomain.Service, _ invitationdomain.Service, _ mfa.Service) {
			log.Info("identity core ready",
				zap.String("service", cfg.AppName),
				zap.String("version", cfg.AppVersion),
				zap.String("environment", cfg.Environment))
		}),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
