package main

import (
	"log"
	"net/http"

	"github.com/go-portfolio/jwt-chat/config"
	"github.com/go-portfolio/jwt-chat/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	// Локально читаем .env, в продакшене переменные берутся из окружения
	_ = godotenv.Load()

	// Загружаем конфигурацию
	cfg := config.Load()

	// Собираем приложение: БД, хранилища, ядро чата, маршруты
	a := app.New(cfg)
	defer a.DB.Close() // не забудь закрыть соединение с БД

	// =========================
	// Запуск сервера
	// =========================
	log.Printf("Server listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, a.Mux); err != nil {
		log.Fatal(err) // Завершаем при ошибке запуска сервера
	}
}
