package app

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-portfolio/jwt-chat/config"
	"github.com/go-portfolio/jwt-chat/internal/auth"
	"github.com/go-portfolio/jwt-chat/internal/chat"
	"github.com/go-portfolio/jwt-chat/internal/message"
	"github.com/go-portfolio/jwt-chat/internal/user"
	"github.com/go-portfolio/jwt-chat/internal/web"

	_ "github.com/lib/pq" // драйвер Postgres
)

type App struct {
	Mux *http.ServeMux
	DB  *sql.DB
}

func New(cfg *config.Config) *App {
	// Одно соединение с БД на оба хранилища
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// User store
	users, err := user.NewStore(db)
	if err != nil {
		log.Fatalf("failed to init user store: %v", err)
	}

	// Message store (таблица сообщений ссылается на users)
	messages, err := message.NewStore(db)
	if err != nil {
		log.Fatalf("failed to init message store: %v", err)
	}

	// JWT secret
	auth.InitSecret([]byte(cfg.JWTSecret))

	// Ядро чата: реестр подключений и рассылка
	registry := chat.NewRegistry()
	broadcaster := chat.NewBroadcaster(registry)

	// Внутренние глобальные сервисы
	web.Users = users
	web.Messages = messages
	web.Registry = registry
	web.Broadcaster = broadcaster
	web.Auth = web.NewAuthenticator()
	web.HistoryLimit = cfg.HistoryLimit

	// Роуты
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", web.HealthHandler)
	mux.HandleFunc("POST /api/register", web.RegisterHandler)
	mux.HandleFunc("POST /api/login", web.LoginHandler)
	mux.Handle("GET /api/profile", web.AuthMiddleware(http.HandlerFunc(web.ProfileHandler)))
	mux.Handle("GET /api/dashboard", web.RequireRole(auth.RoleUser, http.HandlerFunc(web.DashboardHandler)))
	mux.Handle("GET /api/admin", web.RequireRole(auth.RoleAdmin, http.HandlerFunc(web.AdminHandler)))
	mux.HandleFunc("GET /chat/ws/{room}", web.ChatConnectionHandler)

	return &App{Mux: mux, DB: db}
}
