package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/pocketlog/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Inbox keeps the latest notification per key in the notifications table.
type Inbox struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInbox returns an inbox presenter backed by db.
func NewInbox(db *gorm.DB) *Inbox {
	return &Inbox{db: db, now: time.Now}
}

// Present upserts the notification for key.
func (i *Inbox) Present(ctx context.Context, key int64, title, body string) error {
	n := model.Notification{
		Key:         key,
		Title:       title,
		Body:        body,
		PresentedAt: i.now().UTC(),
	}
	err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "body", "presented_at"}),
	}).Create(&n).Error
	if err != nil {
		return fmt.Errorf("inbox present %d: %w", key, err)
	}
	return nil
}

// List returns the stored notifications, most recent first.
func (i *Inbox) List(ctx context.Context) ([]model.Notification, error) {
	notifications := []model.Notification{}
	if err := i.db.WithContext(ctx).Order("presented_at DESC, notification_key DESC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}
