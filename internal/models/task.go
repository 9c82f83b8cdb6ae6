package models

// Task - запись задачи. Задачи общие для всех пользователей.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Структуры только для HTTP-запросов
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest - частичное обновление: nil означает "не менять".
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TaskFilter - параметры выборки списка задач.
type TaskFilter struct {
	Skip  int
	Limit int
	Query string
}

const DefaultLimit = 10

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
