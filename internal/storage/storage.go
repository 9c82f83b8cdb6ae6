package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"task-tracker/internal/manager"
	"task-tracker/internal/models"
)

const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, без cgo
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
	DriverMemory  = "memory"
)

// Open создает хранилище по имени драйвера.
func Open(driver, dbPath string) (manager.Storage, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStorage(), nil
	case DriverSQLite, DriverSQLite3:
		return NewSQLiteStorage(driver, dbPath)
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", driver)
	}
}

// In-memory хранилище для тестов и запуска без диска
type MemoryStorage struct {
	mu         sync.RWMutex
	tasks      map[int]models.Task
	users      map[string]models.User
	nextID     int
	nextUserID int
}

var _ manager.Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:      make(map[int]models.Task),
		users:      make(map[string]models.User),
		nextID:     1,
		nextUserID: 1,
	}
}

func (m *MemoryStorage) CreateTask(_ context.Context, title, description string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := models.Task{ID: m.nextID, Title: title, Description: description}
	m.tasks[task.ID] = task
	m.nextID++

	return &task, nil
}

func (m *MemoryStorage) ListTasks(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := []models.Task{}
	skipped := 0
	for _, id := range slices.Sorted(maps.Keys(m.tasks)) {
		if len(tasks) >= filter.Limit {
			break
		}
		task := m.tasks[id]
		if filter.Query != "" &&
			!strings.Contains(task.Title, filter.Query) &&
			!strings.Contains(task.Description, filter.Query) {
			continue
		}
		if skipped < filter.Skip {
			skipped++
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (m *MemoryStorage) GetTask(_ context.Context, id int) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("задача с ID %d: %w", id, models.ErrNotFound)
	}
	return &task, nil
}

func (m *MemoryStorage) UpdateTask(_ context.Context, id int, req models.UpdateTaskRequest) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("задача с ID %d: %w", id, models.ErrNotFound)
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	m.tasks[id] = task

	return &task, nil
}

func (m *MemoryStorage) DeleteTask(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("задача с ID %d: %w", id, models.ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStorage) CreateUser(_ context.Context, username, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[username]; exists {
		return nil, fmt.Errorf("пользователь %q: %w", username, models.ErrConflict)
	}
	user := models.User{ID: m.nextUserID, Username: username, PasswordHash: passwordHash}
	m.users[username] = user
	m.nextUserID++

	return &user, nil
}

func (m *MemoryStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[username]
	if !ok {
		return nil, fmt.Errorf("пользователь %q: %w", username, models.ErrNotFound)
	}
	return &user, nil
}

func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
