// Package auth содержит хеширование паролей и выпуск/проверку bearer-токенов.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/models"
)

// MaxPasswordBytes - bcrypt учитывает только первые 72 байта.
const MaxPasswordBytes = 72

// BcryptHasher хранит пароли в формате $2a$<cost>$<salt><hash>,
// поэтому для проверки не нужны внешние параметры.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d вне диапазона [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", models.Invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
