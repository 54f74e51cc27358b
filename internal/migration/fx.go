package migration

import (
	"github.com/smallbiznis/identity/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module applies the schema on startup. Postgres gets the versioned SQL
// migrations; other dialects fall back to AutoMigrate.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return AutoMigrate(conn)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
