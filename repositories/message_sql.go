package repositories

import (
	"chat-relay/domain"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

var schemas = map[Dialect]string{
	SQLite: `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id TEXT NOT NULL,
		receiver_id TEXT,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	`,
	MySQL: `
	CREATE TABLE IF NOT EXISTS messages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		sender_id VARCHAR(255) NOT NULL,
		receiver_id VARCHAR(255) NULL,
		text TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		INDEX idx_messages_sender (sender_id),
		INDEX idx_messages_receiver (receiver_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
	`,
}

// SQLMessageRepository stores the message log in a messages table,
// rows {id, sender_id, receiver_id NULL, text, created_at}.
type SQLMessageRepository struct {
	mu            sync.Mutex
	db            *sql.DB
	log           *slog.Logger
	limitMessages *int
	maxTextLength int
	clock         monotonicClock
}

// OpenSQLMessageRepository connects with the given dialect, creates the schema
// if needed and resumes the timestamp sequence from the newest row.
func OpenSQLMessageRepository(ctx context.Context, dialect Dialect, dsn string,
	log *slog.Logger, limitMessages *int, maxTextLength int) (*SQLMessageRepository, error) {
	schema, ok := schemas[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	if dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	repository := &SQLMessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		maxTextLength: maxTextLength,
		clock:         monotonicClock{now: time.Now},
	}

	var newest sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(created_at) FROM messages").Scan(&newest); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reading newest message: %w", err)
	}
	if newest.Valid {
		repository.clock.commit(time.Unix(0, newest.Int64).UTC())
	}
	return repository, nil
}

func (s *SQLMessageRepository) Append(ctx context.Context, sender string, receiver *string, text string) (domain.Message, error) {
	if err := validateAppend(sender, receiver, text, s.maxTextLength); err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.clock.next()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, text, created_at) VALUES (?, ?, ?, ?)",
		sender, nullable(receiver), text, at.UnixNano())
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("retrieve message id: %w", err)
	}
	s.clock.commit(at)

	return domain.Message{
		ID:         uint64(id),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		CreatedAt:  at,
	}, nil
}

func (s *SQLMessageRepository) ListFor(ctx context.Context, identity string, sinceID *uint64) ([]domain.Message, error) {
	// Ids are signed 64-bit in both schemas
	if noneAfter(sinceID, math.MaxInt64) {
		return []domain.Message{}, nil
	}
	var since uint64
	if sinceID != nil {
		since = *sinceID
	}
	query := `SELECT id, sender_id, receiver_id, text, created_at FROM messages
		WHERE id > ? AND (receiver_id IS NULL OR sender_id = ? OR receiver_id = ?)
		ORDER BY id ASC`
	args := []any{since, identity, identity}
	if s.limitMessages != nil {
		query += " LIMIT ?"
		args = append(args, *s.limitMessages)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			message  domain.Message
			receiver sql.NullString
			at       int64
		)
		if err := rows.Scan(&message.ID, &message.SenderID, &receiver, &message.Text, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if receiver.Valid {
			message.ReceiverID = &receiver.String
		}
		message.CreatedAt = time.Unix(0, at).UTC()
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (s *SQLMessageRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

func (s *SQLMessageRepository) Close() error {
	return s.db.Close()
}

func nullable(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
