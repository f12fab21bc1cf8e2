package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-portfolio/jwt-chat/internal/auth"
	"github.com/go-portfolio/jwt-chat/internal/chat"
	"github.com/go-portfolio/jwt-chat/internal/user"
)

// UserStore — операции над пользователями, нужные HTTP-слою.
// Интерфейс позволяет подставлять in-memory мок в тестах.
type UserStore interface {
	Register(username, email, password string, role auth.Role) error
	Authenticate(username, password string) (*user.User, bool)
	GetByUsername(username string) (*user.User, error)
}

// =========================
// Глобальные сервисы (инжектируются в app.New)
// =========================
var (
	Users        UserStore         // Хранилище пользователей
	Messages     chat.MessageStore // Хранилище сообщений
	Registry     *chat.Registry    // Реестр живых подключений
	Broadcaster  *chat.Broadcaster // Рассылка по комнатам
	Auth         chat.Authenticator
	HistoryLimit = 50 // Сколько сообщений истории отдавать при подключении
)

// =========================
// Health check
// GET /health
// =========================
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// =========================
// Регистрация пользователя
// POST /api/register
// тело JSON { "username": "...", "email": "...", "password": "...", "role": "user|admin" }
// =========================
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	var cred user.Credentials
	// Декодируем JSON тело запроса
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid json"})
		return
	}

	// Роль по умолчанию — обычный пользователь
	role := auth.RoleUser
	if cred.Role != "" {
		parsed, err := auth.ParseRole(cred.Role)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		role = parsed
	}

	// Регистрируем пользователя в Users
	if err := Users.Register(cred.Username, cred.Email, cred.Password, role); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "registered"})
}

// =========================
// Логин пользователя
// POST /api/login
// тело JSON { "username": "...", "password": "..." }
// В ответе bearer-токен: его же клиент передаёт
// в query-параметре token при подключении к чату.
// =========================
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	var cred user.Credentials
	// Декодируем JSON тело запроса
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid json"})
		return
	}

	// Проверяем логин/пароль
	u, ok := Users.Authenticate(cred.Username, cred.Password)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
		return
	}

	// Генерируем JWT с ролью и id пользователя
	token, err := auth.IssueJWT(u.ID, u.Username, u.Role)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to issue token"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// =========================
// Профиль текущего пользователя
// GET /api/profile (нужен bearer-токен)
// =========================
func ProfileHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	ident := IdentityFromContext(r)
	if ident == nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	u, err := Users.GetByUsername(ident.Username)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(u)
}

// =========================
// Дашборд обычного пользователя
// GET /api/dashboard (роль user)
// =========================
func DashboardHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	ident := IdentityFromContext(r)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "Welcome to user dashboard",
		"user":    ident.Username,
		"role":    string(ident.Role),
	})
}

// =========================
// Маршрут только для администраторов
// GET /api/admin (роль admin)
// =========================
func AdminHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Welcome to the admin route!"})
}
