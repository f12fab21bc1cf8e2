package user

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-portfolio/jwt-chat/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

// User — учётная запись пользователя.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Store — хранилище пользователей в Postgres.
type Store struct {
	Db *sql.DB
}

// NewStore создаёт хранилище поверх открытого соединения с БД
// и накатывает схему таблицы пользователей.
func NewStore(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run user migrations: %w", err)
	}
	return &Store{Db: db}, nil
}

// Register регистрирует нового пользователя.
// 1. Проверяет, что логин и пароль не пустые.
// 2. Ограничивает длину логина (макс. 24 символа).
// 3. Хэширует пароль с помощью bcrypt.
// 4. Вставляет запись; уникальность логина и email контролирует БД.
func (s *Store) Register(username, email, password string, role auth.Role) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if len(username) > 24 {
		return fmt.Errorf("username too long (max 24)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	query := `INSERT INTO users (username, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = s.Db.Exec(query, username, email, string(hash), string(role), time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "unique") {
			return fmt.Errorf("username or email already exists")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Authenticate проверяет логин и пароль пользователя.
// Возвращает пользователя (его id и роль нужны для выпуска токена)
// и false, если пользователь не найден, пароль не совпал
// или роль в БД повреждена.
func (s *Store) Authenticate(username, password string) (*User, bool) {
	var (
		u       User
		hash    string
		roleStr string
	)
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE username=$1`
	err := s.Db.QueryRow(query, username).Scan(&u.ID, &u.Username, &u.Email, &hash, &roleStr, &u.CreatedAt)
	if err != nil {
		return nil, false
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, false
	}

	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, false
	}
	u.Role = role

	return &u, true
}

// GetByUsername возвращает пользователя по имени.
func (s *Store) GetByUsername(username string) (*User, error) {
	var (
		u       User
		roleStr string
	)
	query := `SELECT id, username, email, role, created_at FROM users WHERE username=$1`
	err := s.Db.QueryRow(query, username).Scan(&u.ID, &u.Username, &u.Email, &roleStr, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}

	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}
	u.Role = role

	return &u, nil
}
