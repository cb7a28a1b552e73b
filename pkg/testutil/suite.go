package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/pkg/database"
	"github.com/workclock/timesheet-backend/pkg/logger"
)

var (
	// shared across every integration test in a package
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a migrated PostgreSQL database for integration tests
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies
// the timesheet schema.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	if containerErr != nil {
		return nil, containerErr
	}

	log := logger.New("timesheet-test", "test")
	db, err := database.NewWithDSN(globalContainer.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := repository.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &IntegrationSuite{
		Container: globalContainer,
		DB:        db,
		Logger:    log,
	}, nil
}

// Truncate empties every timesheet table once the test finishes
func (s *IntegrationSuite) Truncate(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_, err := s.DB.ExecContext(context.Background(),
			`TRUNCATE punches, team_schedules, employee_schedules, employee_teams, absences`)
		if err != nil {
			t.Logf("warning: failed to truncate tables: %v", err)
		}
	})
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		_ = globalContainer.Terminate(ctx)
	}
}
