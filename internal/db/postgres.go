package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/types"
	"github.com/coursebuilder/backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "coursebuilder", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Organization{},
		&types.OrganizationMembership{},
		&types.ContentResource{},
		&types.ContentResourceResource{},
		&types.Product{},
		&types.Purchase{},
		&types.Entitlement{},
		&types.ResourceProgress{},
		&types.JobRun{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	if err := s.db.Exec(`
		ALTER TABLE "content_resource_resource"
		ADD CONSTRAINT "fk_crr_resource_of"
		FOREIGN KEY ("resource_of_id")
		REFERENCES "content_resource"("id")
		ON DELETE CASCADE
	`).Error; err != nil && !isDuplicateConstraint(err) {
		return fmt.Errorf("add fk_crr_resource_of: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "content_resource_resource"
		ADD CONSTRAINT "fk_crr_resource"
		FOREIGN KEY ("resource_id")
		REFERENCES "content_resource"("id")
		ON DELETE CASCADE
	`).Error; err != nil && !isDuplicateConstraint(err) {
		return fmt.Errorf("add fk_crr_resource: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
