package manager

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"task-tracker/internal/models"
)

const (
	MaxUsernameLength = 64
	MaxPasswordBytes  = 72
)

func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return models.Invalid(field, "field required")
	}
	return nil
}

// Длина заголовка и описания не ограничена.
func validateTitle(title string) error {
	return validateRequired("title", title)
}

func validateDescription(description string) error {
	return validateRequired("description", description)
}

func validateCredentials(username, password string) error {
	if err := validateRequired("username", username); err != nil {
		return err
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return models.Invalid("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength))
	}
	if password == "" {
		return models.Invalid("password", "field required")
	}
	if len(password) > MaxPasswordBytes {
		return models.Invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func validateFilter(f models.TaskFilter) error {
	if f.Skip < 0 {
		return models.Invalid("skip", "must be greater than or equal to 0")
	}
	if f.Limit < 0 {
		return models.Invalid("limit", "must be greater than or equal to 0")
	}
	return nil
}
