package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/auth"
	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/models"
	"task-tracker/internal/storage"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStorage
	tokens  *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := auth.NewTokenIssuer([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	um := manager.NewUserManager(store, hasher, tokens, auth.DefaultTokenTTL)
	tm := manager.NewTaskManager(store)
	return &testEnv{handler: NewRouter(tm, um, store), store: store, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/register", fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: статус %d, тело %s", rec.Code, rec.Body)
	}
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.postForm(t, "/token", url.Values{
		"username":   {username},
		"password":   {password},
		"grant_type": {"password"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: статус %d, тело %s", rec.Code, rec.Body)
	}
	resp := decode[models.TokenResponse](t, rec)
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		t.Fatalf("Неверный ответ /token: %+v", resp)
	}
	return resp.AccessToken
}

func (e *testEnv) authorized(t *testing.T) string {
	t.Helper()
	e.register(t, "alice", "pw1")
	return e.login(t, "alice", "pw1")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Ошибка разбора ответа %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Ожидался статус %d, получено %d: %s", want, rec.Code, rec.Body)
	}
}

func TestEndToEnd(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/register", `{"username":"alice","password":"pw1"}`, "")
	expectStatus(t, rec, http.StatusOK)
	user := decode[map[string]any](t, rec)
	if user["username"] != "alice" || user["id"] == nil {
		t.Errorf("Неверный ответ /register: %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("Хеш пароля попал в ответ")
	}

	token := e.login(t, "alice", "pw1")

	rec = e.do(t, http.MethodPost, "/tasks/", `{"title":"Buy milk","description":"2%"}`, token)
	expectStatus(t, rec, http.StatusOK)
	created := decode[models.Task](t, rec)
	if created.Title != "Buy milk" || created.Description != "2%" {
		t.Fatalf("Неверная задача: %+v", created)
	}
	_ = e.do(t, http.MethodPost, "/tasks/", `{"title":"Walk dog","description":"park"}`, token)

	rec = e.do(t, http.MethodGet, "/tasks/?q=milk", "", token)
	expectStatus(t, rec, http.StatusOK)
	found := decode[[]models.Task](t, rec)
	if len(found) != 1 || found[0] != created {
		t.Fatalf("Поиск по milk: %+v", found)
	}

	path := fmt.Sprintf("/tasks/%d", created.ID)
	rec = e.do(t, http.MethodPut, path, `{"description":"whole"}`, token)
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodGet, path, "", token)
	expectStatus(t, rec, http.StatusOK)
	got := decode[models.Task](t, rec)
	if got.Description != "whole" || got.Title != "Buy milk" {
		t.Errorf("После обновления: %+v", got)
	}

	rec = e.do(t, http.MethodDelete, path, "", token)
	expectStatus(t, rec, http.StatusOK)
	if msg := decode[models.MessageResponse](t, rec); msg.Message == "" {
		t.Error("Ожидалось сообщение об удалении")
	}

	rec = e.do(t, http.MethodGet, path, "", token)
	expectStatus(t, rec, http.StatusNotFound)
	if d := decode[models.ErrorResponse](t, rec); d.Detail != "Task not found" {
		t.Errorf("detail = %q", d.Detail)
	}
}

func TestRegisterErrors(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "pw1")

	rec := e.do(t, http.MethodPost, "/register", `{"username":"alice","password":"other"}`, "")
	expectStatus(t, rec, http.StatusBadRequest)
	if d := decode[models.ErrorResponse](t, rec); d.Detail != "Username already exists" {
		t.Errorf("detail = %q", d.Detail)
	}

	rec = e.do(t, http.MethodPost, "/register", `{"username":"bob"}`, "")
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = e.do(t, http.MethodPost, "/register", `{not json`, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestTokenErrors(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "pw1")

	rec := e.postForm(t, "/token", url.Values{"username": {"alice"}, "password": {"wrong"}})
	expectStatus(t, rec, http.StatusUnauthorized)
	if d := decode[models.ErrorResponse](t, rec); d.Detail != "Invalid username or password" {
		t.Errorf("detail = %q", d.Detail)
	}

	rec = e.postForm(t, "/token", url.Values{"username": {"nobody"}, "password": {"pw1"}})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = e.postForm(t, "/token", url.Values{"username": {"alice"}, "password": {"pw1"}, "grant_type": {"client_credentials"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = e.postForm(t, "/token", url.Values{"username": {"alice"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	// grant_type можно не передавать
	rec = e.postForm(t, "/token", url.Values{"username": {"alice"}, "password": {"pw1"}})
	expectStatus(t, rec, http.StatusOK)
}

func TestProtectedRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice", "pw1")

	expired, _ := auth.NewTokenIssuer([]byte("test-secret"))
	expired.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	stale, _ := expired.Issue("alice", time.Minute)

	foreign, _ := auth.NewTokenIssuer([]byte("other-secret"))
	forged, _ := foreign.Issue("alice", time.Minute)

	ghost, _ := e.tokens.Issue("ghost", time.Minute)

	routes := []struct{ method, path, body string }{
		{http.MethodPost, "/tasks/", `{"title":"t","description":"d"}`},
		{http.MethodGet, "/tasks/", ""},
		{http.MethodGet, "/tasks/1", ""},
		{http.MethodPut, "/tasks/1", `{"title":"x"}`},
		{http.MethodDelete, "/tasks/1", ""},
	}
	tokens := map[string]string{
		"missing": "",
		"garbage": "garbage",
		"expired": stale,
		"forged":  forged,
		"unknown": ghost,
	}

	for _, route := range routes {
		for name, token := range tokens {
			t.Run(route.method+" "+route.path+" "+name, func(t *testing.T) {
				rec := e.do(t, route.method, route.path, route.body, token)
				expectStatus(t, rec, http.StatusUnauthorized)
				if rec.Header().Get("WWW-Authenticate") != "Bearer" {
					t.Error("Нет заголовка WWW-Authenticate")
				}
			})
		}
	}

	// Ни один неавторизованный POST не создал задачу
	tasks, _ := e.store.ListTasks(t.Context(), models.TaskFilter{Limit: 10})
	if len(tasks) != 0 {
		t.Errorf("Неавторизованный запрос изменил хранилище: %+v", tasks)
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req.Header.Set("Authorization", "Basic YWxpY2U6cHcx")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestListTasksHTTP(t *testing.T) {
	e := newTestEnv(t)
	token := e.authorized(t)

	for i := 1; i <= 15; i++ {
		rec := e.do(t, http.MethodPost, "/tasks/", fmt.Sprintf(`{"title":"task %d","description":"desc %d"}`, i, i), token)
		expectStatus(t, rec, http.StatusOK)
	}

	rec := e.do(t, http.MethodGet, "/tasks/", "", token)
	expectStatus(t, rec, http.StatusOK)
	page := decode[[]models.Task](t, rec)
	if len(page) != models.DefaultLimit || page[0].ID != 1 || page[9].ID != 10 {
		t.Fatalf("Страница по умолчанию: %+v", page)
	}

	rec = e.do(t, http.MethodGet, "/tasks/?skip=10&limit=10", "", token)
	rest := decode[[]models.Task](t, rec)
	if len(rest) != 5 || rest[0].ID != 11 {
		t.Errorf("Вторая страница: %+v", rest)
	}

	rec = e.do(t, http.MethodGet, "/tasks/?q=task%201", "", token)
	matches := decode[[]models.Task](t, rec)
	// task 1, task 10..15
	if len(matches) != 7 {
		t.Errorf("Поиск task 1: %+v", matches)
	}

	rec = e.do(t, http.MethodGet, "/tasks/?q=nothing", "", token)
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Пустой результат должен быть [], получено %s", rec.Body)
	}

	for _, q := range []string{"skip=-1", "limit=-1", "skip=abc", "limit=x"} {
		rec = e.do(t, http.MethodGet, "/tasks/?"+q, "", token)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	}

	// Верхней границы у limit нет
	rec = e.do(t, http.MethodGet, "/tasks/?limit=200", "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]models.Task](t, rec); len(got) != 15 {
		t.Errorf("limit=200: ожидалось 15 задач, получено %d", len(got))
	}

	// Путь без завершающего слэша обслуживается так же
	rec = e.do(t, http.MethodGet, "/tasks?limit=2", "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]models.Task](t, rec); len(got) != 2 {
		t.Errorf("/tasks без слэша: %+v", got)
	}
}

func TestCreateLongTaskHTTP(t *testing.T) {
	e := newTestEnv(t)
	token := e.authorized(t)

	title := strings.Repeat("t", 201)
	description := strings.Repeat("d", 1001)
	body := fmt.Sprintf(`{"title":%q,"description":%q}`, title, description)

	rec := e.do(t, http.MethodPost, "/tasks/", body, token)
	expectStatus(t, rec, http.StatusOK)
	task := decode[models.Task](t, rec)
	if task.Title != title || task.Description != description {
		t.Errorf("Длинная задача сохранена с искажениями: %d/%d символов", len(task.Title), len(task.Description))
	}
}

func TestTaskErrorsHTTP(t *testing.T) {
	e := newTestEnv(t)
	token := e.authorized(t)

	expectStatus(t, e.do(t, http.MethodGet, "/tasks/999", "", token), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPut, "/tasks/999", `{"title":"x"}`, token), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodDelete, "/tasks/999", "", token), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodGet, "/tasks/abc", "", token), http.StatusUnprocessableEntity)

	expectStatus(t, e.do(t, http.MethodPost, "/tasks/", `{"title":""}`, token), http.StatusUnprocessableEntity)
	expectStatus(t, e.do(t, http.MethodPost, "/tasks/", `[]`, token), http.StatusBadRequest)

	rec := e.do(t, http.MethodPost, "/tasks/", `{"title":"t","description":"d"}`, token)
	task := decode[models.Task](t, rec)
	expectStatus(t, e.do(t, http.MethodPut, fmt.Sprintf("/tasks/%d", task.ID), `{"title":"  "}`, token), http.StatusUnprocessableEntity)

	// null означает "не менять"
	rec = e.do(t, http.MethodPut, fmt.Sprintf("/tasks/%d", task.ID), `{"title":"X","description":null}`, token)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Task](t, rec); got.Title != "X" || got.Description != "d" {
		t.Errorf("Частичное обновление: %+v", got)
	}
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/tasks/", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code >= 300 {
		t.Errorf("Preflight отклонен: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("Нет Access-Control-Allow-Origin: %v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"username":"a","password":"b"}`))
	req.Header.Set("Origin", "http://example.com")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Ожидался Access-Control-Allow-Origin: *, получено %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", "")
	expectStatus(t, rec, http.StatusOK)

	e.register(t, "alice", "pw1")

	rec = e.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, name := range []string{"tasktracker_http_requests_total", "tasktracker_auth_events_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("В /metrics нет %s", name)
		}
	}
	if !strings.Contains(body, `route="/register"`) {
		t.Error("HTTP-метрики должны размечаться шаблоном маршрута")
	}
}
