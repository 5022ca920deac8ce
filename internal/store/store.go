// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
)

// Repository persists identities and their sessions. SaveSession is the only
// durable write path for session state.
type Repository interface {
	// CreateUser registers an identity and its initial session in one step.
	// Returns domain.ErrDuplicateIdentity if email is set and already registered.
	CreateUser(ctx context.Context, name, email, credentialHash string) (*domain.Session, error)

	// GetUser retrieves an identity by uid.
	GetUser(ctx context.Context, uid int64) (*domain.User, error)

	// GetUserByEmail retrieves an identity by its normalized email.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateLastLogin records a successful authentication.
	UpdateLastLogin(ctx context.Context, uid int64, at time.Time) error

	// LoadSession retrieves the session for uid or domain.ErrNotFound.
	LoadSession(ctx context.Context, uid int64) (*domain.Session, error)

	// SaveSession upserts the session by uid and refreshes LastUpdated.
	SaveSession(ctx context.Context, s *domain.Session) error

	// ListSessions returns one summary per registered identity.
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)

	// DeleteUser removes an identity and its session.
	DeleteUser(ctx context.Context, uid int64) error

	// Reset removes every identity and session and returns the number of identities removed.
	Reset(ctx context.Context) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

func sortSummaries(sums []domain.SessionSummary) {
	sort.Slice(sums, func(i, j int) bool { return sums[i].UID < sums[j].UID })
}
