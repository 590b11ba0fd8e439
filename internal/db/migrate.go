package db

import (
	"seeds/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.SeedsTransaction{},
		&models.Decision{},
		&models.Indicator{},
		&models.IndicatorSnapshot{},
		&models.Anticipation{},
		&models.TopArgument{},
	)
}
