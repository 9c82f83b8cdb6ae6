package manager

import (
	"context"

	"task-tracker/internal/models"
)

// TaskStore - хранилище задач. Каждая операция атомарна сама по себе.
type TaskStore interface {
	CreateTask(ctx context.Context, title, description string) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int) (*models.Task, error)
	UpdateTask(ctx context.Context, id int, req models.UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id int) error
}

// UserStore - хранилище учетных записей.
// CreateUser возвращает models.ErrConflict при занятом username,
// GetUserByUsername - models.ErrNotFound, если пользователя нет.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type Storage interface {
	TaskStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
