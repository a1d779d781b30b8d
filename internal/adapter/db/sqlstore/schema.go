package sqlstore

import (
	"fmt"

	"gorm.io/gorm"
)

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	UserID          int64   `gorm:"column:user_id;primaryKey;autoIncrement"` // Store-generated identity
	UserName        string  `gorm:"column:user_name;not null;index"`
	UserEmail       string  `gorm:"column:user_email;not null;uniqueIndex"` // Unique across all rows
	Age             *int    `gorm:"column:age"`
	Recommendations *string `gorm:"column:recommendations;type:text"` // JSON array
	ZipCode         *string `gorm:"column:zip_code"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// ApplySchema creates the users table and its indexes when they are absent.
// An existing table is left untouched; there is no schema evolution.
func ApplySchema(db *gorm.DB) error {
	m := db.Migrator()
	if m.HasTable(&UserSchema{}) {
		return nil
	}

	if err := m.CreateTable(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}
