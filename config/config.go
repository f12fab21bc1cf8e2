package config

import (
	"log"
	"os"
	"strconv"
)

// Config хранит все переменные окружения для проекта.
type Config struct {
	ListenAddr   string // Адрес HTTP-сервера
	DatabaseURL  string // DSN Postgres
	JWTSecret    string // Секрет подписи токенов
	HistoryLimit int    // Сколько сообщений истории отдавать при подключении
}

// Load загружает конфигурацию из .env или переменных окружения.
func Load() *Config {

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret" // Для локальной разработки используем дефолт
		log.Printf("[dev] JWT_SECRET not set, using default secret")
	}

	limit := 50
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("invalid HISTORY_LIMIT: %q", v)
		}
		limit = n
	}

	return &Config{
		ListenAddr:   addr,
		DatabaseURL:  dsn,
		JWTSecret:    secret,
		HistoryLimit: limit,
	}
}
