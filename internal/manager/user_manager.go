package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"task-tracker/internal/logger"
	"task-tracker/internal/models"
)

var authEventCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasktracker_auth_events_total",
		Help: "Total number of register/login/authenticate attempts by status",
	},
	[]string{"event", "status"},
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type TokenIssuer interface {
	Issue(username string, ttl time.Duration) (string, error)
	Verify(token string) (string, error)
}

type UserManager struct {
	store    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	tokenTTL time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// missingUserHash - хеш для проверки пароля неизвестного пользователя.
// Считается тем же hasher, поэтому стоимость bcrypt совпадает с настоящей.
func (um *UserManager) missingUserHash() string {
	um.dummyOnce.Do(func() {
		hash, err := um.hasher.Hash("missing-user-password")
		if err != nil {
			logger.Error(context.Background(), err, "Ошибка подготовки фиктивного хеша")
			return
		}
		um.dummyHash = hash
	})
	return um.dummyHash
}

func NewUserManager(store UserStore, hasher PasswordHasher, tokens TokenIssuer, tokenTTL time.Duration) *UserManager {
	return &UserManager{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

// Register создает пользователя. Занятый username дает models.ErrConflict.
func (um *UserManager) Register(ctx context.Context, req models.RegisterRequest) (user *models.User, err error) {
	defer func() { authEventCount.WithLabelValues("register", statusOf(err)).Inc() }()

	if err := validateCredentials(req.Username, req.Password); err != nil {
		return nil, err
	}

	// Быстрая проверка, чтобы не считать bcrypt для занятого имени.
	// Окончательно уникальность гарантирует хранилище.
	if _, err := um.store.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username %q: %w", req.Username, models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := um.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err = um.store.CreateUser(ctx, req.Username, hash)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Пользователь зарегистрирован", "userID", user.ID, "username", user.Username)
	return user, nil
}

// Login проверяет пароль и выпускает bearer-токен.
// Неизвестный пользователь и неверный пароль неразличимы для клиента.
func (um *UserManager) Login(ctx context.Context, username, password string) (token string, err error) {
	defer func() { authEventCount.WithLabelValues("login", statusOf(err)).Inc() }()

	user, err := um.store.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		// bcrypt выполняется и здесь, чтобы по времени ответа нельзя было
		// отличить неизвестное имя от неверного пароля
		um.hasher.Verify(password, um.missingUserHash())
		logger.Info(ctx, "Неудачная попытка входа", "username", username)
		return "", fmt.Errorf("%w: invalid username or password", models.ErrUnauthenticated)
	}
	if err != nil {
		return "", err
	}

	if !um.hasher.Verify(password, user.PasswordHash) {
		logger.Info(ctx, "Неудачная попытка входа", "username", username)
		return "", fmt.Errorf("%w: invalid username or password", models.ErrUnauthenticated)
	}

	token, err = um.tokens.Issue(user.Username, um.tokenTTL)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "Выдан токен", "username", user.Username)
	return token, nil
}

// Authenticate разрешает токен в пользователя. Токен удаленного
// пользователя не принимается.
func (um *UserManager) Authenticate(ctx context.Context, token string) (user *models.User, err error) {
	defer func() { authEventCount.WithLabelValues("authenticate", statusOf(err)).Inc() }()

	username, err := um.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err = um.store.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown subject", models.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
