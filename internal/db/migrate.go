package db

import (
	"fmt"

	"github.com/mfolsom/drivelog/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.RouteSample{},
		&models.Waypoint{},
		&models.TranscriptSegment{},
		&models.Stop{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops all tables and recreates them. Destructive; used by `db reset`.
func Reset(gdb *gorm.DB) error {
	for _, m := range AllModels() {
		if err := gdb.Migrator().DropTable(m); err != nil {
			return fmt.Errorf("db: drop table %T: %w", m, err)
		}
	}
	return AutoMigrate(gdb)
}
