package message

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-portfolio/jwt-chat/internal/chat"
)

// Store — хранилище сообщений чата в Postgres.
// Реализует интерфейс chat.MessageStore.
type Store struct {
	Db *sql.DB
}

// NewStore создаёт хранилище поверх открытого соединения с БД
// и накатывает схему таблицы сообщений.
func NewStore(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run message migrations: %w", err)
	}
	return &Store{Db: db}, nil
}

// Create сохраняет новое сообщение и возвращает его с присвоенными
// id и временем. Время ставит БД, поэтому в пределах комнаты оно
// не убывает в порядке вставки.
func (s *Store) Create(roomID string, userID int64, content string) (chat.Message, error) {
	msg := chat.Message{RoomID: roomID, UserID: userID, Content: content}
	query := `INSERT INTO messages (room_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, timestamp`
	if err := s.Db.QueryRow(query, roomID, userID, content).Scan(&msg.ID, &msg.Timestamp); err != nil {
		return chat.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

// Recent возвращает последние limit сообщений комнаты от новых к старым.
// before задаёт курсор: выбираются только сообщения старше него.
// Имя автора подтягивается из таблицы пользователей.
func (s *Store) Recent(roomID string, limit int, before *time.Time) ([]chat.Message, error) {
	query := `SELECT m.id, m.room_id, m.user_id, COALESCE(u.username, ''), m.content, m.timestamp
		FROM messages m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1`
	args := []interface{}{roomID}

	if before != nil {
		query += ` AND m.timestamp < $2`
		args = append(args, *before)
	}
	query += fmt.Sprintf(` ORDER BY m.timestamp DESC, m.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.Db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
