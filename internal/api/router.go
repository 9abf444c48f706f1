// Package api exposes the record operations as a JSON HTTP API.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pathakanu/pocketlog/internal/expense"
	"github.com/pathakanu/pocketlog/internal/model"
	"github.com/pathakanu/pocketlog/internal/store"
	"go.uber.org/zap"
)

// ToDoService is implemented by todo.Controller.
type ToDoService interface {
	Create(ctx context.Context, in model.ToDoInput) (model.ToDo, error)
	List(ctx context.Context) ([]model.ToDo, error)
	Update(ctx context.Context, id int64, patch model.ToDoPatch) error
}

// ExpenseService is implemented by expense.Service.
type ExpenseService interface {
	Create(ctx context.Context, in model.ExpenseInput) (model.Expense, error)
	List(ctx context.Context, q model.ExpenseQuery) (expense.Summary, error)
}

// StorageService is implemented by store.Store.
type StorageService interface {
	Info(ctx context.Context) (store.Info, error)
	Export(ctx context.Context, now time.Time) (store.Export, error)
}

// NotificationLister is implemented by notify.Inbox.
type NotificationLister interface {
	List(ctx context.Context) ([]model.Notification, error)
}

// Deps are the services behind the routes.
type Deps struct {
	ToDos         ToDoService
	Expenses      ExpenseService
	Storage       StorageService
	Notifications NotificationLister
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), zapLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api := r.Group("/api")

	todos := &todoHandler{svc: deps.ToDos}
	api.POST("/todos", todos.Create)
	api.GET("/todos", todos.List)
	api.PATCH("/todos/:id", todos.Update)

	expenses := &expenseHandler{svc: deps.Expenses}
	api.POST("/expenses", expenses.Create)
	api.GET("/expenses", expenses.List)

	storage := &storageHandler{svc: deps.Storage, notifications: deps.Notifications, now: time.Now}
	api.GET("/notifications", storage.Notifications)
	api.GET("/storage/info", storage.Info)
	api.GET("/storage/export", storage.Export)

	return r
}
