package message

import "database/sql"

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		room_id TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room_timestamp ON messages (room_id, timestamp);`
	_, err := db.Exec(schema)
	return err
}
