package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

var _ manager.Storage = (*SQLiteStorage)(nil)

// dsn добавляет busy_timeout и foreign_keys в формате конкретного драйвера.
func dsn(driver, dbPath string) string {
	if driver == DriverSQLite3 {
		return "file:" + dbPath + "?_busy_timeout=5000&_foreign_keys=1"
	}
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func NewSQLiteStorage(driver, dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open(driver, dsn(driver, dbPath))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}

	// SQLite допускает одного писателя. Одно соединение сериализует
	// конкурирующие записи и держит общую БД для ":memory:".
	db.SetMaxOpenConns(1)

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Создаем таблицы
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(context.Background(), "SQLite база данных инициализирована", "driver", driver, "path", dbPath)
	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	// AUTOINCREMENT не переиспользует id, поэтому порядок id = порядок вставки
	createTasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("ошибка создания таблицы users: %w", err)
	}
	if _, err := db.Exec(createTasksTable); err != nil {
		return fmt.Errorf("ошибка создания таблицы tasks: %w", err)
	}
	return nil
}

// Закрытие соединения
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx выполняет fn в транзакции; при любой ошибке делается откат.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // после Commit возвращает sql.ErrTxDone

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
	}
	// go-sqlite3 без cgo не экспортирует свой тип ошибки
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Методы для работы с задачами
func (s *SQLiteStorage) CreateTask(ctx context.Context, title, description string) (*models.Task, error) {
	query := `INSERT INTO tasks (title, description) VALUES (?, ?)`

	result, err := s.db.ExecContext(ctx, query, title, description)
	if err != nil {
		return nil, fmt.Errorf("ошибка добавления задачи: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Task{ID: int(id), Title: title, Description: description}, nil
}

// ListTasks ищет подстроку через instr: сравнение регистрозависимое,
// а % и _ в запросе не работают как шаблоны LIKE.
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	query := "SELECT id, title, description FROM tasks"
	var args []any

	if filter.Query != "" {
		query += " WHERE instr(title, ?) > 0 OR instr(description, ?) > 0"
		args = append(args, filter.Query, filter.Query)
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки задач: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Вспомогательная функция для сканирования задач
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryRower, id int) (*models.Task, error) {
	var task models.Task
	err := q.QueryRowContext(ctx, "SELECT id, title, description FROM tasks WHERE id = ?", id).
		Scan(&task.ID, &task.Title, &task.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("задача с ID %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *SQLiteStorage) GetTask(ctx context.Context, id int) (*models.Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *SQLiteStorage) UpdateTask(ctx context.Context, id int, req models.UpdateTaskRequest) (*models.Task, error) {
	var task *models.Task

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Сначала получаем текущую задачу
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			current.Title = *req.Title
		}
		if req.Description != nil {
			current.Description = *req.Description
		}

		query := `
		UPDATE tasks
		SET title = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, current.Title, current.Description, id); err != nil {
			return fmt.Errorf("ошибка обновления задачи %d: %w", id, err)
		}

		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLiteStorage) DeleteTask(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ошибка удаления задачи %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("задача с ID %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Методы для пользователей
func (s *SQLiteStorage) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{Username: username, PasswordHash: passwordHash}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, password_hash) VALUES (?, ?)", username, passwordHash)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("пользователь %q: %w", username, models.ErrConflict)
			}
			return fmt.Errorf("ошибка добавления пользователя: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		user.ID = int(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("пользователь %q: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
