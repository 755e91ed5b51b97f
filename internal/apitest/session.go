package apitest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"homestay/internal/database"
	"homestay/internal/repository"
	"homestay/internal/session"

	"github.com/stretchr/testify/require"
)

// Tiers are the two session tiers over a private in-memory SQLite database.
type Tiers struct {
	Durable *session.DBTier
	Scoped  *session.MemoryTier
	Repo    *repository.SessionRepository
}

func NewTiers(t testing.TB) *Tiers {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:apitest_%s?mode=memory&cache=shared", name)
	db, err := database.Connect(dsn, nil, database.Silent())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repository.NewSessionRepository(db)
	require.NoError(t, repo.Migrate())

	return &Tiers{
		Durable: session.NewDBTier(repo, session.NewSealer("apitest-session-secret"), 24*time.Hour, nil),
		Scoped:  session.NewMemoryTier(),
		Repo:    repo,
	}
}

// Store opens the session of one client over these tiers.
func (t *Tiers) Store(clientID string) *session.Store {
	return session.NewStore(clientID, t.Durable, t.Scoped, nil)
}
