package chat

import "time"

// Message — одно сообщение чата. Создаётся хранилищем (id и timestamp
// присваиваются при вставке) и в неизменном виде рассылается клиентам.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEnvelope — ответ отправителю при ошибке обработки его кадра.
// Остальные участники комнаты его не видят.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// Identity — подтверждённая личность подключившегося клиента.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// Authenticator проверяет предъявленный клиентом credential.
// Ядру чата достаточно различать "принято"/"отклонено":
// детальная причина отказа нужна только для текста закрытия.
type Authenticator interface {
	Validate(credential string) (Identity, error)
}

// MessageStore — долговременное хранилище сообщений комнат.
type MessageStore interface {
	// Create сохраняет сообщение и возвращает его с присвоенными id и временем.
	Create(roomID string, userID int64, content string) (Message, error)
	// Recent возвращает последние сообщения комнаты от новых к старым.
	// before задаёт курсор для выборки более старых сообщений.
	Recent(roomID string, limit int, before *time.Time) ([]Message, error)
}

// Conn — минимальные методы websocket.Conn, которые нужны сессии.
// Интерфейс позволяет подставлять фейковое соединение в тестах.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}
