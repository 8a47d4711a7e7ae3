package testutil

import (
	"context"
	"os"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ajitpratap0/voterelay/pkg/config"
)

// IntegrationEnv enables tests that need docker
const IntegrationEnv = "VOTE_WORKER_INTEGRATION"

// SkipUnlessIntegration skips the test unless IntegrationEnv is set to 1.
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(IntegrationEnv) != "1" {
		t.Skipf("set %s=1 to run integration tests", IntegrationEnv)
	}
}

// NewPostgres starts a Postgres testcontainer and returns the connection
// settings for it. The container is terminated via t.Cleanup.
func NewPostgres(t *testing.T) config.PostgresConfig {
	t.Helper()
	SkipUnlessIntegration(t)
	ctx := context.Background()

	const (
		database = "votes_test"
		user     = "votes_test"
		password = "testpassword"
	)

	pgCtr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(database),
		tcpostgres.WithUsername(user),
		tcpostgres.WithPassword(password),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCtr.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := pgCtr.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pgCtr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return config.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: database,
		User:     user,
		Password: password,
		MaxConns: 2,
	}
}
