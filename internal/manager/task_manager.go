package manager

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"task-tracker/internal/logger"
	"task-tracker/internal/models"
)

var (
	taskOpCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktracker_task_operations_total",
			Help: "Total number of task operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	taskOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasktracker_task_operation_duration_seconds",
			Help:    "Duration of task operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	taskDescLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasktracker_task_desc_length_bytes",
			Help:    "Length distribution of task descriptions",
			Buckets: []float64{50, 100, 500, 1000},
		},
	)
)

const (
	opCreate = "create"
	opList   = "list"
	opGet    = "get"
	opUpdate = "update"
	opDelete = "delete"
)

// statusOf переводит ошибку в значение метки status.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}

type TaskManager struct {
	store TaskStore
}

func NewTaskManager(store TaskStore) *TaskManager {
	return &TaskManager{store: store}
}

// observe фиксирует метрики операции и логирует неожиданные ошибки хранилища.
func (tm *TaskManager) observe(ctx context.Context, op string, start time.Time, err error) {
	taskOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := statusOf(err)
	taskOpCount.WithLabelValues(op, status).Inc()
	if status == "error" {
		logger.Error(ctx, err, "Ошибка хранилища задач", "operation", op)
	}
}

func (tm *TaskManager) CreateTask(ctx context.Context, req models.CreateTaskRequest) (task *models.Task, err error) {
	defer func(start time.Time) { tm.observe(ctx, opCreate, start, err) }(time.Now())

	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	task, err = tm.store.CreateTask(ctx, req.Title, req.Description)
	if err != nil {
		return nil, err
	}

	taskDescLength.Observe(float64(len(req.Description)))
	logger.Debug(ctx, "Задача создана", "taskID", task.ID)
	return task, nil
}

// ListTasks возвращает страницу задач в порядке id. Пустой Query - без фильтра.
func (tm *TaskManager) ListTasks(ctx context.Context, filter models.TaskFilter) (tasks []models.Task, err error) {
	defer func(start time.Time) { tm.observe(ctx, opList, start, err) }(time.Now())

	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	tasks, err = tm.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (tm *TaskManager) GetTask(ctx context.Context, id int) (task *models.Task, err error) {
	defer func(start time.Time) { tm.observe(ctx, opGet, start, err) }(time.Now())

	return tm.store.GetTask(ctx, id)
}

// UpdateTask перезаписывает только переданные поля.
func (tm *TaskManager) UpdateTask(ctx context.Context, id int, req models.UpdateTaskRequest) (task *models.Task, err error) {
	defer func(start time.Time) { tm.observe(ctx, opUpdate, start, err) }(time.Now())

	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}

	task, err = tm.store.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Задача обновлена", "taskID", id)
	return task, nil
}

func (tm *TaskManager) DeleteTask(ctx context.Context, id int) (err error) {
	defer func(start time.Time) { tm.observe(ctx, opDelete, start, err) }(time.Now())

	if err = tm.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	logger.Debug(ctx, "Задача удалена", "taskID", id)
	return nil
}
