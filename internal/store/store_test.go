package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/wellness-planner/internal/domain"
)

type backend struct {
	name string
	open func(t *testing.T) Repository
}

func backends() []backend {
	return []backend{
		{name: "sqlite", open: func(t *testing.T) Repository {
			repo, err := NewSQLite(filepath.Join(t.TempDir(), "planner.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		}},
		{name: "badger", open: func(t *testing.T) Repository {
			repo, err := NewBadger(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repo Repository)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()
			fn(t, b.open(t))
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		created, err := repo.CreateUser(ctx, "Ada", "Ada@Example.com ", "")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Positive(t, created.UID)

		now := time.Now().UTC()
		created.Goal = &domain.Goal{Quantity: 5, Unit: "kg", Duration: "2 months", Category: domain.GoalWeightLoss, Difficulty: domain.DifficultyModerate}
		created.MealPlan = []string{"Day 1: oats"}
		created.InjuryNotes = "sore knee"
		created.AppendMessage(domain.RoleUser, "hello", now)
		created.RecordHandoff(domain.HandoffRecord{FromAgent: "A", ToAgent: "B", Reason: "r", Timestamp: now})
		require.NoError(t, repo.SaveSession(ctx, created))

		loaded, err := repo.LoadSession(ctx, created.UID)
		require.NoError(t, err)
		if diff := cmp.Diff(created, loaded, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("session mismatch (-saved +loaded):\n%s", diff)
		}
	})
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		_, err := repo.CreateUser(ctx, "Ada", "ada@example.com", "")
		require.NoError(t, err)
		_, err = repo.CreateUser(ctx, "Other", "ADA@example.com", "")
		assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

		// Identities without email never collide.
		a, err := repo.CreateUser(ctx, "Anon", "", "")
		require.NoError(t, err)
		b, err := repo.CreateUser(ctx, "Anon", "", "")
		require.NoError(t, err)
		assert.NotEqual(t, a.UID, b.UID)
	})
}

func TestLoadSessionNotFound(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		_, err := repo.LoadSession(context.Background(), 4242)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.GetUser(context.Background(), 4242)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.GetUserByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSaveSessionForUnknownUser(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		s := domain.NewSession(99, "Ghost", "", time.Now())
		err := repo.SaveSession(context.Background(), s)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestLastUpdatedIsMonotonic(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		s, err := repo.CreateUser(ctx, "Ada", "", "")
		require.NoError(t, err)

		require.NoError(t, repo.SaveSession(ctx, s))
		first, err := repo.LoadSession(ctx, s.UID)
		require.NoError(t, err)

		// A stale copy must not move last_updated backwards.
		stale := *first
		stale.LastUpdated = first.LastUpdated.Add(-time.Hour)
		require.NoError(t, repo.SaveSession(ctx, &stale))

		sums, err := repo.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sums, 1)
		assert.False(t, sums[0].LastUpdated.Before(first.LastUpdated))
		assert.False(t, first.LastUpdated.Before(first.CreatedAt))
	})
}

func TestListSessionsOrderedByUID(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		for i := 0; i < 12; i++ {
			_, err := repo.CreateUser(ctx, "user", "", "")
			require.NoError(t, err)
		}
		sums, err := repo.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sums, 12)
		for i := 1; i < len(sums); i++ {
			assert.Less(t, sums[i-1].UID, sums[i].UID)
		}
	})
}

func TestDeleteUserAndReset(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		a, err := repo.CreateUser(ctx, "Ada", "ada@example.com", "hash")
		require.NoError(t, err)
		_, err = repo.CreateUser(ctx, "Bob", "", "")
		require.NoError(t, err)

		require.NoError(t, repo.DeleteUser(ctx, a.UID))
		_, err = repo.LoadSession(ctx, a.UID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteUser(ctx, a.UID), domain.ErrNotFound)

		// The email is free again after deletion.
		_, err = repo.CreateUser(ctx, "Ada", "ada@example.com", "")
		require.NoError(t, err)

		n, err := repo.Reset(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		sums, err := repo.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, sums)

		fresh, err := repo.CreateUser(ctx, "New", "", "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, fresh.UID)
	})
}

func TestLastLogin(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		s, err := repo.CreateUser(ctx, "Ada", "ada@example.com", "secret-hash")
		require.NoError(t, err)

		at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
		require.NoError(t, repo.UpdateLastLogin(ctx, s.UID, at))

		u, err := repo.GetUserByEmail(ctx, "ADA@example.com")
		require.NoError(t, err)
		require.NotNil(t, u.LastLogin)
		assert.True(t, u.LastLogin.Equal(at))
		assert.Equal(t, "secret-hash", u.CredentialHash)

		assert.ErrorIs(t, repo.UpdateLastLogin(ctx, 777, at), domain.ErrNotFound)
	})
}

func TestConcurrentSaves(t *testing.T) {
	t.Parallel()
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		var uids []int64
		for i := 0; i < 4; i++ {
			s, err := repo.CreateUser(ctx, "u", "", "")
			require.NoError(t, err)
			uids = append(uids, s.UID)
		}

		var locks KeyedMutex
		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 40; i++ {
			uid := uids[i%len(uids)]
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock(uid)
				defer unlock()

				s, err := repo.LoadSession(ctx, uid)
				if err != nil {
					errs <- err
					return
				}
				s.AppendMessage(domain.RoleUser, "hi", time.Now())
				errs <- repo.SaveSession(ctx, s)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		for _, uid := range uids {
			s, err := repo.LoadSession(ctx, uid)
			require.NoError(t, err)
			assert.Len(t, s.ConversationHistory, 10)
		}
		assert.Zero(t, locks.Len())
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Options{Driver: "mongo"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrStorageFailure))
}
