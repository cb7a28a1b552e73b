package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workclock/timesheet-backend/internal/timesheet/engine"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/pkg/errors"
	"github.com/workclock/timesheet-backend/pkg/testutil"
)

var nineAM = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func TestPunchRepository_CreatePunch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)

	mockDB.ExpectExec("INSERT INTO punches").
		WithArgs(testutil.AnyUUID{}, "emp-1", nineAM, "IN", "LATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &engine.Punch{SubjectID: "emp-1", Timestamp: nineAM, Direction: engine.DirectionIn, Status: engine.StatusLate}
	created, err := repo.CreatePunch(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, p.ID, 36)
}

func TestPunchRepository_CreatePunch_Replay(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)

	id := "0b6f1f52-6c3e-4d1e-9d55-5b8d2f0f7a10"
	mockDB.ExpectExec("ON CONFLICT (id) DO NOTHING").
		WithArgs(id, "emp-1", nineAM, "OUT", "NORMAL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	p := &engine.Punch{ID: id, SubjectID: "emp-1", Timestamp: nineAM, Direction: engine.DirectionOut, Status: engine.StatusNormal}
	created, err := repo.CreatePunch(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, p.ID)
}

func TestPunchRepository_CreatePunch_ConstraintViolation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)

	mockDB.ExpectExec("INSERT INTO punches").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "punches_direction_valid"})

	_, err := repo.CreatePunch(context.Background(), &engine.Punch{SubjectID: "emp-1", Timestamp: nineAM, Direction: "UP"})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "direction")
}

func TestPunchRepository_ListPunches(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)

	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	local := nineAM.In(time.FixedZone("CET", 3600))

	mockDB.ExpectQuery("FROM punches").
		WithArgs("emp-1", from, to).
		WillReturnRows(testutil.MockRows("id", "employee_id", "punched_at", "direction", "status").
			AddRow("p-1", "emp-1", local, "IN", "NORMAL").
			AddRow("p-2", "emp-1", nineAM.Add(8*time.Hour), "OUT", "NORMAL"))

	punches, err := repo.ListPunches(context.Background(), "emp-1", from, to)
	require.NoError(t, err)
	require.Len(t, punches, 2)

	assert.Equal(t, engine.Punch{ID: "p-1", SubjectID: "emp-1", Timestamp: nineAM, Direction: engine.DirectionIn, Status: engine.StatusNormal}, punches[0])
	assert.Equal(t, time.UTC, punches[0].Timestamp.Location())
	assert.Equal(t, engine.DirectionOut, punches[1].Direction)
}

func TestPunchRepository_GetPunch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)

	mockDB.ExpectQuery("WHERE id = ").
		WithArgs("p-1").
		WillReturnRows(testutil.MockRows("id", "employee_id", "punched_at", "direction", "status").
			AddRow("p-1", "emp-1", nineAM, "IN", "LATE"))
	mockDB.ExpectQuery("WHERE id = ").
		WithArgs("p-2").
		WillReturnError(sql.ErrNoRows)

	p, err := repo.GetPunch(context.Background(), "p-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, engine.StatusLate, p.Status)
	assert.True(t, p.Timestamp.Equal(nineAM))

	p, err = repo.GetPunch(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPunchRepository_UpdatePunch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewPunchRepository(mockDB.DB)
	eightThirty := nineAM.Add(-30 * time.Minute)

	mockDB.ExpectExec("UPDATE punches").
		WithArgs("p-1", "emp-1", eightThirty, "IN", "NORMAL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE punches").
		WithArgs("p-1", "emp-2", eightThirty, "IN", "NORMAL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	p := &engine.Punch{ID: "p-1", SubjectID: "emp-1", Timestamp: eightThirty, Direction: engine.DirectionIn, Status: engine.StatusNormal}
	require.NoError(t, repo.UpdatePunch(context.Background(), p))

	p.SubjectID = "emp-2"
	err := repo.UpdatePunch(context.Background(), p)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}
