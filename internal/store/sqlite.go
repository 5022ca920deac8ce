package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		uid INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		credential_hash TEXT,
		created_at INTEGER NOT NULL,
		last_login INTEGER
	);

	CREATE TABLE IF NOT EXISTS sessions (
		uid INTEGER PRIMARY KEY REFERENCES users(uid) ON DELETE CASCADE,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(last_updated);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts the identity and its empty session in one transaction.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, credentialHash string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	now := time.Now().UTC()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin create user: %v", domain.ErrStorageFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (name, email, credential_hash, created_at) VALUES (?, ?, ?, ?)`,
		name, nullString(email), nullString(credentialHash), now.UnixNano(),
	)
	if err != nil {
		if shared.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: email %s", domain.ErrDuplicateIdentity, email)
		}
		return nil, fmt.Errorf("%w: insert user: %v", domain.ErrStorageFailure, err)
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: user id: %v", domain.ErrStorageFailure, err)
	}

	session := domain.NewSession(uid, name, email, now)
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (uid, data, created_at, last_updated) VALUES (?, ?, ?, ?)`,
		uid, string(data), now.UnixNano(), now.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("%w: insert session: %v", domain.ErrStorageFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit create user: %v", domain.ErrStorageFailure, err)
	}
	return session, nil
}

// GetUser retrieves an identity by uid.
func (s *SQLiteStore) GetUser(ctx context.Context, uid int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, name, email, credential_hash, created_at, last_login
		FROM users WHERE uid = ?`, uid)
	return scanUser(row)
}

// GetUserByEmail retrieves an identity by normalized email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, name, email, credential_hash, created_at, last_login
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var email, hash sql.NullString
	var createdAt int64
	var lastLogin sql.NullInt64

	err := row.Scan(&user.UID, &user.Name, &email, &hash, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan user row: %v", domain.ErrStorageFailure, err)
	}

	user.Email = email.String
	user.CredentialHash = hash.String
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastLogin.Valid {
		ts := time.Unix(0, lastLogin.Int64).UTC()
		user.LastLogin = &ts
	}
	return &user, nil
}

// UpdateLastLogin records a successful authentication.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, uid int64, at time.Time) error {
	return s.withRetry(ctx, "update last_login", func() error {
		result, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE uid = ?`, at.UTC().UnixNano(), uid)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// LoadSession retrieves the session for uid.
func (s *SQLiteStore) LoadSession(ctx context.Context, uid int64) (*domain.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE uid = ?`, uid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", domain.ErrStorageFailure, err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("%w: decode session %d: %v", domain.ErrStorageFailure, uid, err)
	}
	return &session, nil
}

// SaveSession upserts the session document. Retries with exponential backoff
// on SQLITE_BUSY.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.UID <= 0 {
		return fmt.Errorf("%w: session without uid", domain.ErrInvalidInput)
	}
	session.Touch(time.Now())

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (uid, data, created_at, last_updated)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM users WHERE uid = ?)
		ON CONFLICT(uid) DO UPDATE SET
			data = excluded.data,
			last_updated = MAX(sessions.last_updated, excluded.last_updated)`

	return s.withRetry(ctx, "save session", func() error {
		res, err := s.db.ExecContext(ctx, query,
			session.UID, string(data),
			session.CreatedAt.UnixNano(), session.LastUpdated.UnixNano(),
			session.UID,
		)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ListSessions returns one summary per identity ordered by uid.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.uid, u.name, u.email, u.created_at, u.last_login,
		       COALESCE(s.last_updated, u.created_at)
		FROM users u LEFT JOIN sessions s ON s.uid = u.uid
		ORDER BY u.uid`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", domain.ErrStorageFailure, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var out []domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var email sql.NullString
		var createdAt, lastUpdated int64
		var lastLogin sql.NullInt64
		if err := rows.Scan(&sum.UID, &sum.Name, &email, &createdAt, &lastLogin, &lastUpdated); err != nil {
			return nil, fmt.Errorf("%w: scan session row: %v", domain.ErrStorageFailure, err)
		}
		sum.Email = email.String
		sum.CreatedAt = time.Unix(0, createdAt).UTC()
		sum.LastUpdated = time.Unix(0, lastUpdated).UTC()
		if lastLogin.Valid {
			ts := time.Unix(0, lastLogin.Int64).UTC()
			sum.LastLogin = &ts
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sessions: %v", domain.ErrStorageFailure, err)
	}
	return out, nil
}

// DeleteUser removes the identity and its session.
func (s *SQLiteStore) DeleteUser(ctx context.Context, uid int64) error {
	return s.withRetry(ctx, "delete user", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE uid = ?`, uid); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, uid)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return tx.Commit()
	})
}

// Reset removes every identity and session and restarts uid assignment.
func (s *SQLiteStore) Reset(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withRetry(ctx, "reset", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users`)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'users'`); err != nil {
			return err
		}
		return tx.Commit()
	})
	return removed, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs op under the write lock and retries SQLITE_BUSY with
// exponential backoff: 100ms, 200ms, 400ms.
func (s *SQLiteStore) withRetry(ctx context.Context, what string, op func() error) error {
	var err error
	for i := 0; i < writeRetries; i++ {
		s.writeMu.Lock()
		err = op()
		s.writeMu.Unlock()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if !shared.IsSQLiteConflictError(err) || i == writeRetries-1 {
			break
		}

		delay := writeBaseDelay * time.Duration(1<<i)
		slog.Debug("sqlite write conflict, retrying", "op", what, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", domain.ErrStorageFailure, what, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageFailure, what, err)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
