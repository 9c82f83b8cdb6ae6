package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"task-tracker/internal/logger"
	"task-tracker/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(context.Background(), err, "Ошибка записи ответа")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// writeError - единственное место, где ошибки домена превращаются в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeDetail(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, models.ErrConflict):
		writeDetail(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, models.ErrUnauthenticated):
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, models.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Task not found")
	default:
		logger.Error(r.Context(), err, "Внутренняя ошибка при обработке запроса", "path", r.URL.Path)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON читает тело запроса; при ошибке сам пишет 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
