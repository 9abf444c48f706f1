// Package timer is a persistent one-shot timer service keyed by an integer.
//
// Each key holds at most one pending entry. Entries are stored in the
// scheduled_timers table, so a fire that comes due while the process is down
// is delivered on the next Start.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pathakanu/pocketlog/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSweepSpec runs the catch-up sweep once a minute.
const DefaultSweepSpec = "@every 1m"

// Fire is the payload captured at schedule time and handed to the Handler.
type Fire struct {
	Key    int64
	Title  string
	FireAt time.Time
}

// Handler receives fires. It runs on a timer goroutine and must not block for long.
type Handler func(ctx context.Context, f Fire)

// SchedulingError reports a failed schedule or cancel command.
type SchedulingError struct {
	Op  string
	Key int64
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("timer %s key %d: %v", e.Op, e.Key, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("timer service already started")

// Options tunes a Service.
type Options struct {
	// SweepSpec is a cron spec for the catch-up sweep. Empty means DefaultSweepSpec.
	SweepSpec string
	// Location is the cron time zone. Nil means time.Local.
	Location *time.Location
	// Now overrides the wall clock.
	Now func() time.Time
}

type armed struct {
	timer  *time.Timer
	fireAt int64
}

// Service schedules and delivers one-shot timers.
type Service struct {
	db     *gorm.DB
	cron   *cron.Cron
	spec   string
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[int64]armed
	handler Handler
	started bool
	sweepID cron.EntryID
}

// New creates a timer service backed by db. Nothing fires until Start.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	if opts.SweepSpec == "" {
		opts.SweepSpec = DefaultSweepSpec
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:     db,
		cron:   cron.New(cron.WithLocation(opts.Location)),
		spec:   opts.SweepSpec,
		now:    opts.Now,
		logger: logger,
		timers: make(map[int64]armed),
	}
}

// Schedule sets the single pending entry for key, replacing any previous one.
func (s *Service) Schedule(ctx context.Context, key int64, fireAt time.Time, title string) error {
	entry := model.ScheduledTimer{
		Key:    key,
		FireAt: fireAt.UnixMilli(),
		Title:  title,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"fire_at", "title", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return &SchedulingError{Op: "schedule", Key: key, Err: err}
	}

	s.mu.Lock()
	if s.started {
		s.armLocked(key, entry.FireAt)
	}
	s.mu.Unlock()

	s.logger.Debug("timer: scheduled", zap.Int64("key", key), zap.Time("fire_at", fireAt))
	return nil
}

// Cancel removes the pending entry for key. Cancelling an empty key is a no-op.
func (s *Service) Cancel(ctx context.Context, key int64) error {
	s.mu.Lock()
	s.disarmLocked(key)
	s.mu.Unlock()

	if err := s.db.WithContext(ctx).Where("schedule_key = ?", key).Delete(&model.ScheduledTimer{}).Error; err != nil {
		return &SchedulingError{Op: "cancel", Key: key, Err: err}
	}
	s.logger.Debug("timer: cancelled", zap.Int64("key", key))
	return nil
}

// Pending lists the stored entries ordered by fire time.
func (s *Service) Pending(ctx context.Context) ([]model.ScheduledTimer, error) {
	var entries []model.ScheduledTimer
	if err := s.db.WithContext(ctx).Order("fire_at ASC, schedule_key ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Start registers the fire handler, arms every stored entry and starts the catch-up sweep.
// Entries whose time has already passed fire immediately.
func (s *Service) Start(ctx context.Context, handler Handler) error {
	entries, err := s.Pending(ctx)
	if err != nil {
		return fmt.Errorf("load timers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if s.sweepID == 0 {
		id, err := s.cron.AddFunc(s.spec, s.Sweep)
		if err != nil {
			return fmt.Errorf("sweep spec %q: %w", s.spec, err)
		}
		s.sweepID = id
	}

	s.handler = handler
	s.started = true
	for _, e := range entries {
		s.armLocked(e.Key, e.FireAt)
	}
	s.cron.Start()

	s.logger.Info("timer: started", zap.Int("pending", len(entries)), zap.String("sweep", s.spec))
	return nil
}

// Stop halts the sweep and every in-process timer. Stored entries are kept.
func (s *Service) Stop() {
	done := s.cron.Stop()
	<-done.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.timers {
		s.disarmLocked(key)
	}
	s.started = false
}

// Sweep fires every stored entry that is due. Before Start or after Stop it
// leaves entries in place. It covers in-process timers lost
// to suspend or clock jumps; the claim in fire keeps delivery at most once.
func (s *Service) Sweep() {
	var due []model.ScheduledTimer
	if err := s.db.Where("fire_at <= ?", s.now().UnixMilli()).Find(&due).Error; err != nil {
		s.logger.Error("timer: sweep", zap.Error(err))
		return
	}
	for _, e := range due {
		s.fire(e.Key, e.FireAt)
	}
}

func (s *Service) armLocked(key, fireAt int64) {
	s.disarmLocked(key)

	delay := time.UnixMilli(fireAt).Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[key] = armed{
		timer:  time.AfterFunc(delay, func() { s.fire(key, fireAt) }),
		fireAt: fireAt,
	}
}

func (s *Service) disarmLocked(key int64) {
	if a, ok := s.timers[key]; ok {
		a.timer.Stop()
		delete(s.timers, key)
	}
}

// fire claims the entry (key, fireAt) and hands it to the handler. A
// rescheduled or cancelled entry no longer matches and is skipped. Nothing is
// claimed while the service is stopped.
func (s *Service) fire(key, fireAt int64) {
	s.mu.Lock()
	if a, ok := s.timers[key]; ok && a.fireAt == fireAt {
		delete(s.timers, key)
	}
	handler, started := s.handler, s.started
	s.mu.Unlock()
	if !started || handler == nil {
		s.logger.Debug("timer: not started, entry kept", zap.Int64("key", key))
		return
	}

	var entry model.ScheduledTimer
	err := s.db.Where("schedule_key = ? AND fire_at = ?", key, fireAt).Limit(1).Find(&entry).Error
	if err != nil {
		s.logger.Error("timer: load entry", zap.Int64("key", key), zap.Error(err))
		return
	}
	if entry.Key == 0 {
		return
	}

	res := s.db.Where("schedule_key = ? AND fire_at = ?", key, fireAt).Delete(&model.ScheduledTimer{})
	if res.Error != nil {
		s.logger.Error("timer: claim entry", zap.Int64("key", key), zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	handler(context.Background(), Fire{
		Key:    key,
		Title:  entry.Title,
		FireAt: time.UnixMilli(fireAt),
	})
}
