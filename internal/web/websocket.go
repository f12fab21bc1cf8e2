package web

import (
	"log"
	"net/http"
	"time"

	"github.com/go-portfolio/jwt-chat/internal/auth"
	"github.com/go-portfolio/jwt-chat/internal/chat"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем соединения с любого источника (можно ограничить домен)
		return true
	},
}

// jwtAuthenticator — адаптер chat.Authenticator поверх пакета auth.
// За интерфейсом может стоять любая схема подписи токена,
// ядро чата об этом ничего не знает.
type jwtAuthenticator struct{}

func (jwtAuthenticator) Validate(credential string) (chat.Identity, error) {
	ident, err := auth.ParseJWT(credential)
	if err != nil {
		return chat.Identity{}, err
	}
	return chat.Identity{
		UserID:   ident.UserID,
		Username: ident.Username,
		Role:     string(ident.Role),
	}, nil
}

// NewAuthenticator возвращает Authenticator, проверяющий JWT.
func NewAuthenticator() chat.Authenticator {
	return jwtAuthenticator{}
}

// =========================
// ChatConnectionHandler
// GET /chat/ws/{room}?token=<JWT>
// Токен передаётся query-параметром: браузерный WebSocket
// не позволяет выставить свой заголовок при upgrade.
// =========================
func ChatConnectionHandler(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	token := r.URL.Query().Get("token")

	// Обновляем HTTP-соединение до WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Проверяем credential. При отказе закрываем соединение кодом
	// policy violation — в реестр такая сессия не попадает.
	ident, err := Auth.Validate(token)
	if err != nil {
		log.Printf("WebSocket auth rejected for room %s: %v", roomID, err)
		deadline := time.Now().Add(10 * time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
		_ = conn.Close()
		return
	}

	// Сессия блокирует обработчик до отключения клиента
	sess := chat.NewSession(roomID, ident, conn, Registry, Messages, Broadcaster, HistoryLimit)
	sess.Run()
}
