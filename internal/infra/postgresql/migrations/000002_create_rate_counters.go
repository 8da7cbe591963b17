package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createRateCountersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_rate_counters",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.RateCounterModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RateCounterModel{})
		},
	}
}
