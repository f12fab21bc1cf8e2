package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-portfolio/jwt-chat/internal/auth"
	"github.com/go-portfolio/jwt-chat/internal/chat"
	"github.com/go-portfolio/jwt-chat/internal/user"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

/*
	Тестовые моки для UserStore и chat.MessageStore.

	Почему нужны моки:
	- handlers используют глобальные переменные Users/Messages/Registry
	- для unit-тестов не хотим дергать реальную БД
	- поэтому создаём лёгкие in-memory реализации

	Важно:
	- мок повторяет видимую логику ошибок реального Store
	  (например, "username or email already exists"), чтобы тесты
	  были релевантными и handlers корректно передавали ошибки дальше.
*/

// mockUser хранит bcrypt-хэш пароля и атрибуты учётной записи
type mockUser struct {
	id   int64
	hash []byte
	mail string
	role auth.Role
}

// mockUserStore — in-memory хранилище пользователей с защитой от конкурентного доступа
type mockUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]mockUser
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]mockUser)}
}

func (m *mockUserStore) Register(username, email, password string, role auth.Role) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if len(username) > 24 {
		return fmt.Errorf("username too long (max 24)")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; ok {
		return fmt.Errorf("username or email already exists")
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	m.nextID++
	m.users[username] = mockUser{id: m.nextID, hash: h, mail: email, role: role}
	return nil
}

func (m *mockUserStore) Authenticate(username, password string) (*user.User, bool) {
	m.mu.Lock()
	u, ok := m.users[username]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return nil, false
	}
	return &user.User{ID: u.id, Username: username, Email: u.mail, Role: u.role}, true
}

func (m *mockUserStore) GetByUsername(username string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return &user.User{ID: u.id, Username: username, Email: u.mail, Role: u.role}, nil
}

// fakeMessageStore — in-memory chat.MessageStore для WebSocket-тестов
type fakeMessageStore struct {
	mu     sync.Mutex
	nextID int64
	msgs   []chat.Message
}

func (f *fakeMessageStore) Create(roomID string, userID int64, content string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := chat.Message{ID: f.nextID, RoomID: roomID, UserID: userID, Content: content, Timestamp: time.Now().UTC()}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeMessageStore) Recent(roomID string, limit int, before *time.Time) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for i := len(f.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.msgs[i].RoomID == roomID {
			out = append(out, f.msgs[i])
		}
	}
	return out, nil
}

// setupGlobals подставляет свежие моки вместо глобальных сервисов
func setupGlobals() (*mockUserStore, *fakeMessageStore) {
	auth.InitSecret([]byte("test-secret"))
	users := newMockUserStore()
	msgs := &fakeMessageStore{}
	Users = users
	Messages = msgs
	Registry = chat.NewRegistry()
	Broadcaster = chat.NewBroadcaster(Registry)
	Auth = NewAuthenticator()
	HistoryLimit = 50
	return users, msgs
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(data)
}

/* ==========================
   ТЕСТЫ RegisterHandler
   ========================== */

// Успешная регистрация с ролью по умолчанию
func TestRegisterHandler_Success(t *testing.T) {
	setupGlobals()

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		jsonBody(t, user.Credentials{Username: "alice", Email: "alice@example.com", Password: "12345"}))
	rr := httptest.NewRecorder()

	RegisterHandler(rr, req) // вызов тестируемого handler-а

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "registered", resp["status"])

	// Пользователь действительно добавлен в мок
	_, ok := Users.Authenticate("alice", "12345")
	assert.True(t, ok)
}

// Некорректное JSON-тело
func TestRegisterHandler_InvalidJSON(t *testing.T) {
	setupGlobals()

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	RegisterHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid json")
}

// Роль вне закрытого набора отклоняется
func TestRegisterHandler_UnknownRole(t *testing.T) {
	setupGlobals()

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		jsonBody(t, user.Credentials{Username: "eve", Password: "12345", Role: "superuser"}))
	rr := httptest.NewRecorder()

	RegisterHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown role")
}

// Повторная регистрация (duplicate username)
func TestRegisterHandler_DuplicateUser(t *testing.T) {
	users, _ := setupGlobals()
	assert.NoError(t, users.Register("bob", "bob@example.com", "pass", auth.RoleUser))

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		jsonBody(t, user.Credentials{Username: "bob", Password: "pass"}))
	rr := httptest.NewRecorder()

	RegisterHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "already exists")
}

/* ==========================
   ТЕСТЫ LoginHandler
   ========================== */

// Успешный логин: в ответе валидный bearer-токен с ролью и id
func TestLoginHandler_Success(t *testing.T) {
	users, _ := setupGlobals()
	assert.NoError(t, users.Register("alice", "alice@example.com", "12345", auth.RoleAdmin))

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		jsonBody(t, user.Credentials{Username: "alice", Password: "12345"}))
	rr := httptest.NewRecorder()

	LoginHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "bearer", resp["token_type"])

	// Выданный токен разбирается обратно в ту же личность
	ident, err := auth.ParseJWT(resp["access_token"])
	assert.NoError(t, err)
	assert.Equal(t, "alice", ident.Username)
	assert.Equal(t, auth.RoleAdmin, ident.Role)
	assert.Equal(t, int64(1), ident.UserID)
}

// Неверные учётные данные
func TestLoginHandler_InvalidCredentials(t *testing.T) {
	users, _ := setupGlobals()
	assert.NoError(t, users.Register("alice", "alice@example.com", "12345", auth.RoleUser))

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		jsonBody(t, user.Credentials{Username: "alice", Password: "wrong"}))
	rr := httptest.NewRecorder()

	LoginHandler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid credentials")
}

/* ==========================
   ТЕСТЫ middleware
   ========================== */

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	setupGlobals()

	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться без токена")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing bearer token")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	setupGlobals()

	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен вызываться с битым токеном")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid token")
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	setupGlobals()
	token, _ := auth.IssueJWT(7, "alice", auth.RoleUser)

	var seen *auth.Identity
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if assert.NotNil(t, seen, "identity должна попасть в контекст запроса") {
		assert.Equal(t, "alice", seen.Username)
		assert.Equal(t, int64(7), seen.UserID)
	}
}

// RequireRole: пользователь с чужой ролью получает 403
func TestRequireRole_Forbidden(t *testing.T) {
	setupGlobals()
	token, _ := auth.IssueJWT(7, "alice", auth.RoleUser)

	handler := RequireRole(auth.RoleAdmin, http.HandlerFunc(AdminHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "operation not permitted")
}

func TestRequireRole_Allowed(t *testing.T) {
	setupGlobals()
	token, _ := auth.IssueJWT(7, "root", auth.RoleAdmin)

	handler := RequireRole(auth.RoleAdmin, http.HandlerFunc(AdminHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "admin route")
}

/* ==========================
   ТЕСТЫ ProfileHandler
   ========================== */

func TestProfileHandler_Success(t *testing.T) {
	users, _ := setupGlobals()
	assert.NoError(t, users.Register("alice", "alice@example.com", "12345", auth.RoleUser))
	token, _ := auth.IssueJWT(1, "alice", auth.RoleUser)

	handler := AuthMiddleware(http.HandlerFunc(ProfileHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var u user.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, "alice@example.com", u.Email)
}

/* ==========================
   ТЕСТЫ WebSocket endpoint
   ========================== */

// Тестовый сервер с тем же маршрутом, что и в app.New
func newWSServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/ws/{room}", ChatConnectionHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, room, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws/" + room + "?token=" + token
}

// Отклонённый credential: соединение закрывается кодом policy violation,
// комната в реестре не появляется
func TestChatConnectionHandler_RejectsInvalidToken(t *testing.T) {
	setupGlobals()
	srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "lobby", "garbage"), nil)
	assert.NoError(t, err, "upgrade проходит, отказ приходит close-кадром")
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"ожидался close с кодом policy violation, получено: %v", err)

	assert.Empty(t, Registry.Rooms(), "отклонённое подключение не должно трогать реестр")
}

// Успешное подключение: история, затем эхо собственного сообщения
func TestChatConnectionHandler_HistoryThenEcho(t *testing.T) {
	_, msgs := setupGlobals()
	HistoryLimit = 2

	// Три сообщения в "x" и одно в "y": клиент должен получить
	// только два последних из своей комнаты, от старых к новым
	_, _ = msgs.Create("x", 1, "A")
	_, _ = msgs.Create("x", 1, "B")
	_, _ = msgs.Create("x", 1, "C")
	_, _ = msgs.Create("y", 2, "D")

	token, _ := auth.IssueJWT(7, "alice", auth.RoleUser)
	srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "x", token), nil)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second chat.Message
	assert.NoError(t, conn.ReadJSON(&first))
	assert.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "B", first.Content)
	assert.Equal(t, "C", second.Content)

	// Отправляем своё сообщение и получаем его обратно общим каналом рассылки
	assert.NoError(t, conn.WriteJSON(map[string]string{"content": "hello"}))

	var echo chat.Message
	assert.NoError(t, conn.ReadJSON(&echo))
	assert.Equal(t, "hello", echo.Content)
	assert.Equal(t, "alice", echo.Username)
	assert.Equal(t, int64(7), echo.UserID)
	assert.Equal(t, "x", echo.RoomID)
	assert.NotZero(t, echo.ID)
}

// Некорректный кадр: отправитель получает error envelope, сессия живёт
func TestChatConnectionHandler_MalformedFrame(t *testing.T) {
	setupGlobals()
	token, _ := auth.IssueJWT(7, "alice", auth.RoleUser)
	srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "lobby", token), nil)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var errEnv chat.ErrorEnvelope
	assert.NoError(t, conn.ReadJSON(&errEnv))
	assert.Equal(t, "invalid message format", errEnv.Error)

	// Сессия пережила некорректный кадр: следующий валидный обрабатывается
	assert.NoError(t, conn.WriteJSON(map[string]string{"content": "still alive"}))
	var echo chat.Message
	assert.NoError(t, conn.ReadJSON(&echo))
	assert.Equal(t, "still alive", echo.Content)
}

// После отключения клиента сессия убирает себя из реестра
func TestChatConnectionHandler_CleanupOnDisconnect(t *testing.T) {
	setupGlobals()
	token, _ := auth.IssueJWT(7, "alice", auth.RoleUser)
	srv := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "lobby", token), nil)
	assert.NoError(t, err)

	// Дождёмся регистрации, затем отключимся
	assert.Eventually(t, func() bool {
		return len(Registry.SessionsFor("lobby")) == 1
	}, 2*time.Second, 10*time.Millisecond, "сессия должна попасть в реестр")

	_ = conn.Close()

	assert.Eventually(t, func() bool {
		return len(Registry.Rooms()) == 0
	}, 2*time.Second, 10*time.Millisecond, "после отключения реестр должен опустеть")
}
