package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is one persisted key-value pair of the runtime configuration.
// Unknown keys left behind by older versions are ignored on load.
type Setting struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }

// LoadSettings returns all persisted settings as a map.
func LoadSettings(ctx context.Context, db *gorm.DB) (map[string]string, error) {
	var rows []Setting
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SaveSettings upserts the given key-value pairs in one transaction.
func SaveSettings(ctx context.Context, db *gorm.DB, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, Setting{Key: k, Value: v})
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}
