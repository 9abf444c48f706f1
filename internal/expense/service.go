// Package expense is the bookkeeping side of the store: append and summarise.
package expense

import (
	"context"
	"time"

	"github.com/pathakanu/pocketlog/internal/model"
)

// Store is the record store surface for expenses.
type Store interface {
	CreateExpense(ctx context.Context, in model.ExpenseInput) (model.Expense, error)
	ListExpenses(ctx context.Context, q model.ExpenseQuery, now time.Time) ([]model.Expense, error)
}

// Summary is a filtered expense listing with its running total.
type Summary struct {
	Items []model.Expense `json:"expenses"`
	Total float64         `json:"total"`
	Count int             `json:"count"`
}

// Service creates and lists expenses.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService wraps store. now defaults to time.Now.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Create validates and stores a new expense.
func (s *Service) Create(ctx context.Context, in model.ExpenseInput) (model.Expense, error) {
	return s.store.CreateExpense(ctx, in)
}

// List returns the matching expenses, newest first, with their total amount.
func (s *Service) List(ctx context.Context, q model.ExpenseQuery) (Summary, error) {
	if q.TimeFilter == "" {
		q.TimeFilter = model.TimeFilterAll
	}
	items, err := s.store.ListExpenses(ctx, q, s.now())
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Items: items, Count: len(items)}
	for _, e := range items {
		summary.Total += e.Amount
	}
	return summary, nil
}
