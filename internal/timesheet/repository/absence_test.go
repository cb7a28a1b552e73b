package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/pkg/testutil"
)

func TestAbsenceRepository_ListAbsences(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewAbsenceRepository(mockDB.DB)

	mockDB.ExpectQuery("FROM absences").
		WithArgs("emp-1", "2024-01-15", "2024-01-21").
		WillReturnRows(testutil.MockRows("id", "employee_id", "start_date", "end_date", "status").
			AddRow("abs-1", "emp-1", "2024-01-10", "2024-01-16", "APPROVED").
			AddRow("abs-2", "emp-1", "2024-01-19", "2024-01-19", "PENDING"))

	absences, err := repo.ListAbsences(context.Background(), "emp-1", "2024-01-15", "2024-01-21")
	require.NoError(t, err)
	assert.Equal(t, []repository.AbsenceRecord{
		{ID: "abs-1", EmployeeID: "emp-1", StartDate: "2024-01-10", EndDate: "2024-01-16", Status: "APPROVED"},
		{ID: "abs-2", EmployeeID: "emp-1", StartDate: "2024-01-19", EndDate: "2024-01-19", Status: "PENDING"},
	}, absences)
}

func TestAbsenceRepository_UpsertAbsence(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewAbsenceRepository(mockDB.DB)

	mockDB.ExpectExec("ON CONFLICT (id) DO UPDATE").
		WithArgs("abs-1", "emp-1", "2024-01-10", "2024-01-16", "CANCELLED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertAbsence(context.Background(), &repository.AbsenceRecord{
		ID: "abs-1", EmployeeID: "emp-1", StartDate: "2024-01-10", EndDate: "2024-01-16", Status: "CANCELLED",
	})
	require.NoError(t, err)
}
