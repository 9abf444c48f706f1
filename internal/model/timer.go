package model

import "time"

// ScheduledTimer is the single pending timer entry for a schedule key.
type ScheduledTimer struct {
	Key       int64     `gorm:"column:schedule_key;primaryKey;autoIncrement:false"`
	FireAt    int64     `gorm:"not null;index"`
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Notification is the latest reminder presented for a key. Presenting the same key again replaces it.
type Notification struct {
	Key         int64     `gorm:"column:notification_key;primaryKey;autoIncrement:false" json:"key"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	PresentedAt time.Time `gorm:"not null" json:"presentedAt"`
}

// SchemaMeta records the schema version of the record tables.
type SchemaMeta struct {
	ID      uint `gorm:"primaryKey"`
	Version int  `gorm:"not null"`
}

func (ScheduledTimer) TableName() string { return "scheduled_timers" }

func (Notification) TableName() string { return "notifications" }

func (SchemaMeta) TableName() string { return "schema_meta" }
