package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries (created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_failure_reason ON deliveries (failure_reason) WHERE failure_reason IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_correlation_id ON deliveries (correlation_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryModel{})
		},
	}
}
