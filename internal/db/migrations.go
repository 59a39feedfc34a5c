package db

import (
	"fmt"

	"coinwatch/internal/models"

	"gorm.io/gorm"
)

const deviceTimeIndex = "idx_device_data_device_ts"

// EnsureEventIndexes makes sure the (device_id, timestamp) index exists on
// device_data. AutoMigrate declares it, but tables created before the tag
// was added lack it.
func EnsureEventIndexes(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	m := db.Migrator()
	if !m.HasTable(&models.DeviceData{}) || m.HasIndex(&models.DeviceData{}, deviceTimeIndex) {
		return nil
	}

	switch dialect := db.Dialector.Name(); dialect {
	case "mysql":
		return db.Exec("CREATE INDEX `" + deviceTimeIndex + "` ON `device_data` (`device_id`, `timestamp`)").Error
	case "postgres":
		return db.Exec(`CREATE INDEX IF NOT EXISTS ` + deviceTimeIndex + ` ON "device_data" ("device_id", "timestamp")`).Error
	case "sqlite":
		return db.Exec(`CREATE INDEX IF NOT EXISTS ` + deviceTimeIndex + ` ON device_data (device_id, timestamp)`).Error
	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
