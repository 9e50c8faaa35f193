// Package settings implements model.SettingsStore against the single-row
// Postgres "settings" table, via database/sql and lib/pq — the same
// database/sql idiom the rest of this repo's storage layers use, rather
// than introducing a second driver family for one table.
package settings

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"trading-systemv1/internal/model"
)

const settingsRowID = 1

// PostgresStore reads (and, once, creates) the singleton settings row.
type PostgresStore struct {
	db *sql.DB
}

// Config is the Postgres connection configuration.
type Config struct {
	Host, Port, DB, User, Password string
}

// New opens a connection pool to Postgres.
func New(cfg Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.DB, cfg.User, cfg.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("settings: open postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureExists creates the singleton settings row with defaults if absent.
// Invoked once at startup by the supervisor.
func (s *PostgresStore) EnsureExists(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, interval, min_multiplier, timeout, chat_id, bot_token, created_at)
		VALUES ($1, 60, 50.0, 60, NULL, NULL, now())
		ON CONFLICT (id) DO NOTHING
	`, settingsRowID)
	if err != nil {
		return fmt.Errorf("settings: ensure exists: %w", err)
	}
	return nil
}

// Get reads the current settings row.
func (s *PostgresStore) Get(ctx context.Context) (model.Settings, error) {
	var (
		interval      int
		minMultiplier float64
		timeout       int
		chatID        sql.NullInt64
		botToken      sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT interval, min_multiplier, timeout, chat_id, bot_token
		FROM settings WHERE id = $1
	`, settingsRowID).Scan(&interval, &minMultiplier, &timeout, &chatID, &botToken)
	if err != nil {
		return model.Settings{}, fmt.Errorf("settings: get: %w", err)
	}

	out := model.Settings{
		IntervalSeconds: interval,
		MinMultiplier:   minMultiplier,
		TimeoutSeconds:  timeout,
	}
	if chatID.Valid {
		out.ChatID = chatID.Int64
	}
	if botToken.Valid {
		out.BotToken = botToken.String
	}
	return out, nil
}

// DB returns the underlying connection pool, for liveness probing.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
