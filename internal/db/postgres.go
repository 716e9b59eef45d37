package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the database named by DB_DRIVER. "postgres" is the production
// driver; "sqlite" backs the one-shot CLI and tests.
func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	driver := envutil.String("DB_DRIVER", "postgres")
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := envutil.String("POSTGRES_PASSWORD", "")
		name := envutil.String("POSTGRES_NAME", "mediavault")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(envutil.String("SQLITE_PATH", "mediavault.db"))
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}

	serviceLog.Info("Connecting to database...", "driver", driver)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&assets.Asset{},
		&assets.Variant{},
	)
	if err != nil {
		s.log.Error("Failed to auto migrate tables", "error", err)
		return fmt.Errorf("failed to auto migrate tables: %w", err)
	}
	s.log.Info("Tables migrated")
	return nil
}
