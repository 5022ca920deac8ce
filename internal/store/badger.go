package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ashureev/wellness-planner/internal/domain"
)

const (
	userPrefix    = "user/"
	emailPrefix   = "email/"
	sessionPrefix = "session/"
	uidSequence   = "seq/uid"

	sequenceBandwidth = 64
	txnConflictRetry  = 5
)

// BadgerConfig configures the embedded key-value backend.
type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerStore implements Repository on BadgerDB. Each identity is three
// keys: the user record, an email index entry and the session document.
type BadgerStore struct {
	db *badger.DB

	seqMu sync.Mutex
	seq   *badger.Sequence
}

// userRecord is the stored form of domain.User, which hides the credential hash from JSON.
type userRecord struct {
	UID            int64      `json:"uid"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	CredentialHash string     `json:"credential_hash,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

func (r userRecord) user() *domain.User {
	return &domain.User{
		UID:            r.UID,
		Name:           r.Name,
		Email:          r.Email,
		CredentialHash: r.CredentialHash,
		CreatedAt:      r.CreatedAt,
		LastLogin:      r.LastLogin,
	}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadger opens a BadgerDB-backed repository.
func NewBadger(cfg BadgerConfig) (Repository, error) {
	return openBadger(cfg)
}

func openBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(uidSequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquire uid sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func userKey(uid int64) []byte    { return []byte(userPrefix + strconv.FormatInt(uid, 10)) }
func sessionKey(uid int64) []byte { return []byte(sessionPrefix + strconv.FormatInt(uid, 10)) }
func emailKey(email string) []byte {
	return []byte(emailPrefix + email)
}

// Ping verifies the database is open.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("%w: badger is closed", domain.ErrStorageFailure)
	}
	return nil
}

func (s *BadgerStore) nextUID() (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

// CreateUser writes the identity, email index and empty session in one transaction.
func (s *BadgerStore) CreateUser(ctx context.Context, name, email, credentialHash string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	uid, err := s.nextUID()
	if err != nil {
		return nil, fmt.Errorf("%w: next uid: %v", domain.ErrStorageFailure, err)
	}
	now := time.Now().UTC()
	rec := userRecord{UID: uid, Name: name, Email: email, CredentialHash: credentialHash, CreatedAt: now}
	session := domain.NewSession(uid, name, email, now)

	err = s.update(ctx, func(txn *badger.Txn) error {
		if email != "" {
			_, err := txn.Get(emailKey(email))
			if err == nil {
				return fmt.Errorf("%w: email %s", domain.ErrDuplicateIdentity, email)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(emailKey(email), []byte(strconv.FormatInt(uid, 10))); err != nil {
				return err
			}
		}
		if err := setJSON(txn, userKey(uid), rec); err != nil {
			return err
		}
		return setJSON(txn, sessionKey(uid), session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetUser retrieves an identity by uid.
func (s *BadgerStore) GetUser(ctx context.Context, uid int64) (*domain.User, error) {
	var rec userRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, userKey(uid), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// GetUserByEmail resolves the email index and loads the identity.
func (s *BadgerStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	var rec userRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		uid, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt email index for %s: %w", email, err)
		}
		return getJSON(txn, userKey(uid), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// UpdateLastLogin records a successful authentication.
func (s *BadgerStore) UpdateLastLogin(ctx context.Context, uid int64, at time.Time) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var rec userRecord
		if err := getJSON(txn, userKey(uid), &rec); err != nil {
			return err
		}
		ts := at.UTC()
		rec.LastLogin = &ts
		return setJSON(txn, userKey(uid), rec)
	})
}

// LoadSession retrieves the session document for uid.
func (s *BadgerStore) LoadSession(ctx context.Context, uid int64) (*domain.Session, error) {
	var session domain.Session
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, sessionKey(uid), &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveSession upserts the session document for an existing identity.
func (s *BadgerStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.UID <= 0 {
		return fmt.Errorf("%w: session without uid", domain.ErrInvalidInput)
	}
	session.Touch(time.Now())

	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(session.UID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		var stored domain.Session
		switch err := getJSON(txn, sessionKey(session.UID), &stored); {
		case err == nil:
			if stored.LastUpdated.After(session.LastUpdated) {
				session.LastUpdated = stored.LastUpdated
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return setJSON(txn, sessionKey(session.UID), session)
	})
}

// ListSessions returns one summary per identity ordered by uid.
func (s *BadgerStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	var out []domain.SessionSummary
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec userRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			sum := domain.SessionSummary{
				UID:         rec.UID,
				Name:        rec.Name,
				Email:       rec.Email,
				CreatedAt:   rec.CreatedAt,
				LastLogin:   rec.LastLogin,
				LastUpdated: rec.CreatedAt,
			}
			var session domain.Session
			switch err := getJSON(txn, sessionKey(rec.UID), &session); {
			case err == nil:
				sum.LastUpdated = session.LastUpdated
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
			out = append(out, sum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys sort lexically, so "user/10" precedes "user/2".
	sortSummaries(out)
	return out, nil
}

// DeleteUser removes the identity, its email index entry and its session.
func (s *BadgerStore) DeleteUser(ctx context.Context, uid int64) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var rec userRecord
		if err := getJSON(txn, userKey(uid), &rec); err != nil {
			return err
		}
		if rec.Email != "" {
			if err := txn.Delete(emailKey(rec.Email)); err != nil {
				return err
			}
		}
		if err := txn.Delete(sessionKey(uid)); err != nil {
			return err
		}
		return txn.Delete(userKey(uid))
	})
}

// Reset drops every key and restarts uid assignment.
func (s *BadgerStore) Reset(ctx context.Context) (int64, error) {
	sums, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	if err := s.seq.Release(); err != nil {
		return 0, fmt.Errorf("%w: release uid sequence: %v", domain.ErrStorageFailure, err)
	}
	if err := s.db.DropAll(); err != nil {
		return 0, fmt.Errorf("%w: drop all: %v", domain.ErrStorageFailure, err)
	}
	seq, err := s.db.GetSequence([]byte(uidSequence), sequenceBandwidth)
	if err != nil {
		return 0, fmt.Errorf("%w: acquire uid sequence: %v", domain.ErrStorageFailure, err)
	}
	s.seq = seq
	return int64(len(sums)), nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if err := s.seq.Release(); err != nil {
		slog.Warn("failed to release uid sequence", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on transaction conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < txnConflictRetry; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageFailure, ctxErr)
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return wrapBadgerErr(err)
}

func (s *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return wrapBadgerErr(s.db.View(fn))
}

func wrapBadgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateIdentity),
		errors.Is(err, domain.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}
