// Package todo keeps each to-do's reminder timer consistent with its stored state.
package todo

import (
	"context"
	"time"

	"github.com/pathakanu/pocketlog/internal/model"
	"go.uber.org/zap"
)

// Store is the record store surface the controller needs.
type Store interface {
	CreateToDo(ctx context.Context, in model.ToDoInput) (model.ToDo, error)
	ListToDos(ctx context.Context) ([]model.ToDo, error)
	UpdateToDo(ctx context.Context, id int64, patch model.ToDoPatch) error
	GetTitle(ctx context.Context, id int64) (string, bool, error)
}

// Scheduler is the timer service. Schedule replaces any entry under key; Cancel
// is a no-op when nothing is scheduled.
type Scheduler interface {
	Schedule(ctx context.Context, key int64, fireAt time.Time, title string) error
	Cancel(ctx context.Context, key int64) error
}

// Controller applies to-do mutations and issues the matching timer commands.
type Controller struct {
	store  Store
	timers Scheduler
	now    func() time.Time
	logger *zap.Logger
}

// NewController wires a controller. now defaults to time.Now.
func NewController(store Store, timers Scheduler, now func() time.Time, logger *zap.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{store: store, timers: timers, now: now, logger: logger}
}

// Create stores a new to-do and arms its reminder when the time is still ahead.
// A time at or before now is stored without a reminder.
func (c *Controller) Create(ctx context.Context, in model.ToDoInput) (model.ToDo, error) {
	todo, err := c.store.CreateToDo(ctx, in)
	if err != nil {
		return model.ToDo{}, err
	}

	if c.inFuture(todo.When) {
		c.schedule(ctx, todo.ID, todo.When, todo.Title)
	} else {
		c.logger.Debug("todo: time not in the future, no reminder", zap.Int64("todo_id", todo.ID))
	}
	return todo, nil
}

// List returns every to-do ordered by reminder time.
func (c *Controller) List(ctx context.Context) ([]model.ToDo, error) {
	return c.store.ListToDos(ctx)
}

// Update applies patch and then brings the timer in line with it:
//  1. done=true cancels the pending reminder.
//  2. a new future time schedules a reminder with the stored title; a time at
//     or before now cancels instead, so no stale reminder stays armed. When
//     the title cannot be read the reminder is cancelled as well.
//
// With both fields the cancel comes first and the schedule wins. Store errors
// are returned before any timer command is issued; timer failures are only logged.
func (c *Controller) Update(ctx context.Context, id int64, patch model.ToDoPatch) error {
	if err := c.store.UpdateToDo(ctx, id, patch); err != nil {
		return err
	}

	cancelled := false
	if patch.Done != nil && *patch.Done {
		c.cancel(ctx, id)
		cancelled = true
	}

	if patch.When == nil {
		return nil
	}
	when := *patch.When
	if !c.inFuture(when) {
		if !cancelled {
			c.cancel(ctx, id)
		}
		return nil
	}

	title, ok, err := c.store.GetTitle(ctx, id)
	switch {
	case err != nil:
		c.logger.Error("todo: title lookup for reschedule", zap.Int64("todo_id", id), zap.Error(err))
	case !ok:
		c.logger.Warn("todo: no title for reschedule", zap.Int64("todo_id", id))
	default:
		c.schedule(ctx, id, when, title)
		return nil
	}
	// The old entry no longer matches the stored time.
	if !cancelled {
		c.cancel(ctx, id)
	}
	return nil
}

func (c *Controller) inFuture(whenMs int64) bool {
	return whenMs > c.now().UnixMilli()
}

func (c *Controller) schedule(ctx context.Context, id, whenMs int64, title string) {
	if err := c.timers.Schedule(ctx, id, time.UnixMilli(whenMs), title); err != nil {
		c.logger.Error("todo: schedule reminder", zap.Int64("todo_id", id), zap.Error(err))
	}
}

func (c *Controller) cancel(ctx context.Context, id int64) {
	if err := c.timers.Cancel(ctx, id); err != nil {
		c.logger.Error("todo: cancel reminder", zap.Int64("todo_id", id), zap.Error(err))
	}
}
