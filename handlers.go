package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/models"
)

func registerHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := um.Register(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// tokenHandler - OAuth2 password flow: форма username, password, grant_type=password.
func tokenHandler(um *manager.UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeDetail(w, http.StatusBadRequest, "Invalid form body")
			return
		}

		if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
			writeError(w, r, models.Invalid("grant_type", `must be "password"`))
			return
		}
		username := r.PostForm.Get("username")
		password := r.PostForm.Get("password")
		if username == "" {
			writeError(w, r, models.Invalid("username", "field required"))
			return
		}
		if password == "" {
			writeError(w, r, models.Invalid("password", "field required"))
			return
		}

		token, err := um.Login(r.Context(), username, password)
		if errors.Is(err, models.ErrUnauthenticated) {
			writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

func createTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		task, err := tm.CreateTask(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if user, ok := UserFromContext(r.Context()); ok {
			logger.Info(r.Context(), "Задача создана", "taskID", task.ID, "username", user.Username)
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(name, "must be an integer")
	}
	return v, nil
}

func listTasksHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, err := queryInt(r, "skip", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", models.DefaultLimit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		tasks, err := tm.ListTasks(r.Context(), models.TaskFilter{
			Skip:  skip,
			Limit: limit,
			Query: r.URL.Query().Get("q"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, tasks)
	}
}

func taskID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, models.Invalid("id", fmt.Sprintf("invalid task id %q", chi.URLParam(r, "id")))
	}
	return id, nil
}

func getTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		task, err := tm.GetTask(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, task)
	}
}

func updateTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req models.UpdateTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		task, err := tm.UpdateTask(r.Context(), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, task)
	}
}

func deleteTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := tm.DeleteTask(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Task deleted successfully"})
	}
}
