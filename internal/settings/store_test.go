package settings

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureExistsInsertsDefaultRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings")).
		WithArgs(settingsRowID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := &PostgresStore{db: db}
	if err := s.EnsureExists(context.Background()); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetReturnsRowWithNullOptionalFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"interval", "min_multiplier", "timeout", "chat_id", "bot_token"}).
		AddRow(60, 50.0, 60, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT interval, min_multiplier, timeout, chat_id, bot_token")).
		WithArgs(settingsRowID).
		WillReturnRows(rows)

	s := &PostgresStore{db: db}
	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IntervalSeconds != 60 || got.MinMultiplier != 50.0 || got.TimeoutSeconds != 60 {
		t.Fatalf("got %+v, want interval=60 minMultiplier=50 timeout=60", got)
	}
	if got.ChatID != 0 || got.BotToken != "" {
		t.Fatalf("expected zero-value ChatID/BotToken for NULL columns, got %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetReturnsPopulatedOptionalFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"interval", "min_multiplier", "timeout", "chat_id", "bot_token"}).
		AddRow(30, 75.5, 120, int64(123456), "abc:def")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT interval, min_multiplier, timeout, chat_id, bot_token")).
		WithArgs(settingsRowID).
		WillReturnRows(rows)

	s := &PostgresStore{db: db}
	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ChatID != 123456 {
		t.Fatalf("ChatID = %d, want 123456", got.ChatID)
	}
	if got.BotToken != "abc:def" {
		t.Fatalf("BotToken = %q, want abc:def", got.BotToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDBReturnsUnderlyingPool(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	s := &PostgresStore{db: db}
	if s.DB() != db {
		t.Fatalf("DB() did not return the underlying *sql.DB")
	}
}
