package chat

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Сколько сообщений истории отправлять новому подключению по умолчанию
	defaultHistoryLimit = 50

	readLimit  = 512              // Максимальный размер входящего кадра
	pongWait   = 60 * time.Second // Таймаут чтения, обновляется PONG-ом
	pingPeriod = 45 * time.Second // Период PING для проверки соединения
	writeWait  = 10 * time.Second // Таймаут одной записи в соединение
)

// Session — жизненный цикл одного аутентифицированного подключения:
// регистрация в реестре, отправка истории, цикл чтения, очистка.
// Создаётся только после успешной проверки credential.
type Session struct {
	id       string
	roomID   string
	identity Identity
	conn     Conn

	registry     *Registry
	store        MessageStore
	broadcaster  *Broadcaster
	historyLimit int

	// writeMu сериализует записи в соединение: в него пишут
	// циклы рассылки чужих сессий, ответные ошибки и PING-и.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewSession создаёт сессию для комнаты roomID поверх уже принятого соединения.
func NewSession(roomID string, identity Identity, conn Conn, registry *Registry, store MessageStore, broadcaster *Broadcaster, historyLimit int) *Session {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Session{
		id:           uuid.NewString(),
		roomID:       roomID,
		identity:     identity,
		conn:         conn,
		registry:     registry,
		store:        store,
		broadcaster:  broadcaster,
		historyLimit: historyLimit,
	}
}

// ID возвращает идентификатор сессии (для логов).
func (s *Session) ID() string { return s.id }

// Identity возвращает личность подключившегося пользователя.
func (s *Session) Identity() Identity { return s.identity }

// Run выполняет полный цикл сессии и блокируется до отключения клиента.
// Очистка гарантирована при любом пути выхода.
func (s *Session) Run() {
	defer s.Close()

	s.registry.Register(s.roomID, s)
	log.Printf("session %s: пользователь %s подключился к комнате %s", s.id, s.identity.Username, s.roomID)

	if err := s.replayHistory(); err != nil {
		log.Printf("session %s: ошибка отправки истории комнаты %s: %v", s.id, s.roomID, err)
		return
	}

	s.readLoop()
}

// Close переводит сессию в терминальное состояние: удаляет её из реестра
// и закрывает соединение. Повторные вызовы безопасны.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.registry.Deregister(s.roomID, s)
		_ = s.conn.Close()
		log.Printf("session %s: пользователь %s отключён от комнаты %s", s.id, s.identity.Username, s.roomID)
	})
}

// replayHistory отправляет новому подключению последние сообщения комнаты.
// Хранилище возвращает их от новых к старым, клиенту отправляем
// в хронологическом порядке — как если бы он получил их живой рассылкой.
func (s *Session) replayHistory() error {
	msgs, err := s.store.Recent(s.roomID, s.historyLimit, nil)
	if err != nil {
		return err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if err := s.Send(msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Ожидаемый формат входящего кадра
type inboundPayload struct {
	Content string `json:"content"`
}

// readLoop читает входящие кадры до отключения клиента.
// Каждый кадр: декодировать → сохранить → разослать комнате.
// Некорректный кадр не фатален, ошибка сохранения — фатальна.
func (s *Session) readLoop() {
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { // Обновление таймаута при получении PONG
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(stopPing)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("session %s: read error: %v", s.id, err)
			}
			return
		}

		var in inboundPayload
		if err := json.Unmarshal(data, &in); err != nil {
			// Некорректный кадр: сообщаем только отправителю, сессия живёт дальше
			s.sendError("invalid message format")
			continue
		}

		content := strings.TrimSpace(in.Content)
		if content == "" {
			continue // Игнорируем пустые сообщения
		}

		msg, err := s.store.Create(s.roomID, s.identity.UserID, content)
		if err != nil {
			// Рассылать несохранённое сообщение нельзя — закрываем сессию
			log.Printf("session %s: ошибка сохранения сообщения: %v", s.id, err)
			return
		}
		msg.Username = s.identity.Username

		// Рассылка в той же горутине, что и сохранение: порядок доставки
		// совпадает с порядком вставки. Отправитель получает своё сообщение
		// тем же путём, что и остальные.
		s.broadcaster.Broadcast(s.roomID, msg)
	}
}

// pingLoop периодически отправляет PING для проверки соединения.
func (s *Session) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// Send отправляет клиенту envelope сообщения.
func (s *Session) Send(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// sendError отправляет структурированную ошибку только этому клиенту.
func (s *Session) sendError(reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteJSON(ErrorEnvelope{Error: reason})
}

func (s *Session) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}
