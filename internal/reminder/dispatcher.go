// Package reminder turns timer fires into user notifications.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pathakanu/pocketlog/internal/notify"
	myopenai "github.com/pathakanu/pocketlog/internal/openai"
	"github.com/pathakanu/pocketlog/internal/timer"
	"go.uber.org/zap"
)

// Composer phrases the notification body for a to-do.
type Composer interface {
	ComposeReminder(ctx context.Context, title string, due time.Time) (string, error)
}

// NotifiedMarker records that the reminder for a to-do's current time was shown.
type NotifiedMarker interface {
	MarkNotified(ctx context.Context, id, when int64) (bool, error)
}

// Dispatcher is the timer fire handler.
type Dispatcher struct {
	presenter notify.Presenter
	composer  Composer
	todos     NotifiedMarker
	location  *time.Location
	logger    *zap.Logger
}

// New creates a dispatcher. composer may be nil, in which case bodies are rendered locally.
func New(presenter notify.Presenter, composer Composer, todos NotifiedMarker, location *time.Location, logger *zap.Logger) *Dispatcher {
	if location == nil {
		location = time.Local
	}
	return &Dispatcher{
		presenter: presenter,
		composer:  composer,
		todos:     todos,
		location:  location,
		logger:    logger,
	}
}

// Handle presents the reminder carried by f. The title is the one captured at
// schedule time. Failures are logged and never returned: nobody is waiting on a fire.
func (d *Dispatcher) Handle(ctx context.Context, f timer.Fire) {
	log := d.logger.With(zap.Int64("todo_id", f.Key))
	defer func() {
		if r := recover(); r != nil {
			log.Error("reminder: dispatch panicked", zap.Any("panic", r))
		}
	}()

	body := d.body(ctx, f)
	if err := d.presenter.Present(ctx, f.Key, f.Title, body); err != nil {
		log.Error("reminder: present failed", zap.Error(err))
		return
	}

	marked, err := d.todos.MarkNotified(ctx, f.Key, f.FireAt.UnixMilli())
	if err != nil {
		log.Error("reminder: mark notified", zap.Error(err))
		return
	}
	if !marked {
		log.Info("reminder: to-do changed since scheduling, notified flag left alone")
	}
	log.Info("reminder: presented", zap.String("title", f.Title))
}

func (d *Dispatcher) body(ctx context.Context, f timer.Fire) string {
	fallback := fmt.Sprintf("Due %s", f.FireAt.In(d.location).Format("Jan 02 15:04"))
	if d.composer == nil {
		return fallback
	}

	body, err := d.composer.ComposeReminder(ctx, f.Title, f.FireAt.In(d.location))
	if err != nil {
		if !errors.Is(err, myopenai.ErrClientNotInitialised) {
			d.logger.Warn("reminder: compose body", zap.Error(err))
		}
		return fallback
	}
	if body == "" {
		return fallback
	}
	return body
}

// Handler adapts the dispatcher to the timer service.
func (d *Dispatcher) Handler() timer.Handler {
	return d.Handle
}
