package models

import "gorm.io/gorm"

// AllModels returns all models for migration.
// Users come first since posts and comments reference them.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Post{},
		&Comment{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
