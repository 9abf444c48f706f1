package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pathakanu/pocketlog/internal/database"
	"github.com/pathakanu/pocketlog/internal/model"
	"gorm.io/gorm"
)

var (
	// ErrValidation is returned when a required field is absent. Nothing is written.
	ErrValidation = errors.New("missing required fields")
	// ErrNotFound is returned when an update targets an id that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage failure")
)

// Store is the record store for expenses and to-dos.
type Store struct {
	db *gorm.DB
}

// New wraps the shared database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateToDo inserts a new pending to-do and returns it with its assigned id.
// The title must be non-blank; priority is stored as given, empty included.
func (s *Store) CreateToDo(ctx context.Context, in model.ToDoInput) (model.ToDo, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" || in.When == nil || in.Priority == nil {
		return model.ToDo{}, ErrValidation
	}

	todo := model.ToDo{
		Title:    *in.Title,
		When:     *in.When,
		Priority: *in.Priority,
	}
	if err := s.db.WithContext(ctx).Create(&todo).Error; err != nil {
		return model.ToDo{}, storageErr("insert todo", err)
	}
	return todo, nil
}

// ListToDos returns every to-do ordered by reminder time.
func (s *Store) ListToDos(ctx context.Context) ([]model.ToDo, error) {
	todos := []model.ToDo{}
	if err := s.db.WithContext(ctx).Order("when_time ASC, id ASC").Find(&todos).Error; err != nil {
		return nil, storageErr("list todos", err)
	}
	return todos, nil
}

// UpdateToDo applies the non-nil fields of patch. Changing When also clears Notified.
func (s *Store) UpdateToDo(ctx context.Context, id int64, patch model.ToDoPatch) error {
	updates := map[string]any{}
	if patch.Done != nil {
		updates["done"] = *patch.Done
	}
	if patch.DoneAt != nil {
		updates["done_at"] = *patch.DoneAt
	}
	if patch.When != nil {
		updates["when_time"] = *patch.When
		updates["notified"] = false
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ToDo{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return storageErr("lookup todo", err)
		}
		if count == 0 {
			return fmt.Errorf("todo %d: %w", id, ErrNotFound)
		}
		if patch.Empty() {
			return nil
		}
		if err := tx.Model(&model.ToDo{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return storageErr("update todo", err)
		}
		return nil
	})
}

// GetTitle returns the title of a to-do. A missing id is reported through ok, not err.
func (s *Store) GetTitle(ctx context.Context, id int64) (title string, ok bool, err error) {
	var titles []string
	if err := s.db.WithContext(ctx).Model(&model.ToDo{}).Where("id = ?", id).Limit(1).Pluck("title", &titles).Error; err != nil {
		return "", false, storageErr("lookup title", err)
	}
	if len(titles) == 0 {
		return "", false, nil
	}
	return titles[0], true, nil
}

// MarkNotified flags a to-do as notified if its reminder time is still when.
// It reports whether a row was changed.
func (s *Store) MarkNotified(ctx context.Context, id, when int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.ToDo{}).
		Where("id = ? AND when_time = ?", id, when).
		Update("notified", true)
	if res.Error != nil {
		return false, storageErr("mark notified", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateExpense appends an expense record.
func (s *Store) CreateExpense(ctx context.Context, in model.ExpenseInput) (model.Expense, error) {
	if in.Item == nil || in.Amount == nil || in.Date == nil || in.Timestamp == nil {
		return model.Expense{}, ErrValidation
	}

	expense := model.Expense{
		Item:      *in.Item,
		Amount:    *in.Amount,
		Date:      *in.Date,
		Timestamp: *in.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&expense).Error; err != nil {
		return model.Expense{}, storageErr("insert expense", err)
	}
	return expense, nil
}

// ListExpenses returns expenses matching q, newest first. The time window is measured back from now.
func (s *Store) ListExpenses(ctx context.Context, q model.ExpenseQuery, now time.Time) ([]model.Expense, error) {
	query := s.db.WithContext(ctx).Model(&model.Expense{})
	if search := strings.TrimSpace(q.Search); search != "" {
		query = query.Where("LOWER(item) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if window := q.TimeFilter.Window(); window > 0 {
		query = query.Where("timestamp >= ?", now.Add(-window).UnixMilli())
	}

	expenses := []model.Expense{}
	if err := query.Order("timestamp DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, storageErr("list expenses", err)
	}
	return expenses, nil
}

// Export is a full dump of the record tables.
type Export struct {
	Expenses   []model.Expense `json:"expenses"`
	ToDos      []model.ToDo    `json:"todos"`
	ExportDate time.Time       `json:"exportDate"`
}

// Export returns every expense and to-do.
func (s *Store) Export(ctx context.Context, now time.Time) (Export, error) {
	out := Export{ExportDate: now.UTC()}

	expenses, err := s.ListExpenses(ctx, model.ExpenseQuery{TimeFilter: model.TimeFilterAll}, now)
	if err != nil {
		return Export{}, err
	}
	todos, err := s.ListToDos(ctx)
	if err != nil {
		return Export{}, err
	}
	out.Expenses = expenses
	out.ToDos = todos
	return out, nil
}

// Info describes the backing store.
type Info struct {
	Backend      string `json:"backend"`
	ExpenseCount int64  `json:"expenseCount"`
	ToDoCount    int64  `json:"todoCount"`
}

// Info reports the backend and row counts.
func (s *Store) Info(ctx context.Context) (Info, error) {
	info := Info{Backend: database.Backend(s.db)}
	if err := s.db.WithContext(ctx).Model(&model.Expense{}).Count(&info.ExpenseCount).Error; err != nil {
		return Info{}, storageErr("count expenses", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.ToDo{}).Count(&info.ToDoCount).Error; err != nil {
		return Info{}, storageErr("count todos", err)
	}
	return info, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
