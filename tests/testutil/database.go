package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// tables in dependency order; children first
var tables = []string{
	"team_invites",
	"team_members",
	"teams",
	"team_categories",
	"verified_users",
}

// Postgres is a throwaway server shared by every test in a package.
type Postgres struct {
	container testcontainers.Container
	DSN       string
}

// StartPostgres boots a postgres container. Call it once from TestMain and
// Terminate it after m.Run.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "teamforge",
				"POSTGRES_PASSWORD": "teamforge",
				"POSTGRES_DB":       "teamforge_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("resolve postgres endpoint: %w", err)
	}

	return &Postgres{
		container: container,
		DSN:       fmt.Sprintf("postgres://teamforge:teamforge@%s/teamforge_test?sslmode=disable", endpoint),
	}, nil
}

func (p *Postgres) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}

// TestDB is a migrated, empty database handed to one test.
type TestDB struct {
	DB *database.DB
}

// Open connects to the shared server, applies migrations and empties every
// table, so each test starts from nothing.
func (p *Postgres) Open(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, p.DSN)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx), "run migrations")

	tdb := &TestDB{DB: db}
	tdb.Reset(t)
	return tdb
}

func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	_, err := tdb.DB.Pool.Exec(context.Background(),
		"TRUNCATE TABLE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	require.NoError(t, err, "truncate tables")
}
