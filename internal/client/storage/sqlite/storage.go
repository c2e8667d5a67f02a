// Package sqlite implements the client operation store on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/agromarket/internal/client/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage implementation for client
type Storage struct {
	db *sql.DB
}

var _ storage.Store = (*Storage)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", storage.ErrStorage, err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", storage.ErrStorage, err)
	}

	// Один писатель: так транзакции не конкурируют за блокировку файла,
	// а ":memory:" база не теряется между соединениями
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: failed to set pragma: %w", storage.ErrStorage, err)
		}
	}

	s := &Storage{db: db}

	// Запускаем миграции
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to run migrations: %w", storage.ErrStorage, err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// conn returns the open database or ErrStorageClosed
func (s *Storage) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

// inTx выполняет fn в транзакции; при ошибке транзакция откатывается целиком
func (s *Storage) inTx(ctx context.Context, action string, fn func(q querier) error) error {
	db, err := s.conn()
	if err != nil {
		return wrapErr(action, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(action, fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrapErr(action, err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(action, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// read выполняет запрос без транзакции
func (s *Storage) read(action string, fn func(q querier) error) error {
	db, err := s.conn()
	if err != nil {
		return wrapErr(action, err)
	}
	return wrapErr(action, fn(db))
}

// wrapErr помечает ошибки хранилища; доменные sentinel-ошибки возвращаются как есть
func wrapErr(action string, err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		storage.ErrOperationNotFound,
		storage.ErrDuplicateOperation,
		storage.ErrConflictNotFound,
		storage.ErrConflictResolved,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrStorage, action, err)
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}
