package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univera/campus-enroll-api/internal/models"
)

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{StudentID: "stu-1", OfferingID: "off-1", Date: date, Status: models.AttendanceStatusPresent},
		{StudentID: "stu-2", OfferingID: "off-1", Date: date, Status: models.AttendanceStatusAbsent},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, offering_id, date)")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "off-1", date, models.AttendanceStatusPresent, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, offering_id, date)")).
		WithArgs(sqlmock.AnyArg(), "stu-2", "off-1", date, models.AttendanceStatusAbsent, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	count, err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"offering_id", "course_id", "course_name", "total_classes", "present_classes"}).
		AddRow("off-1", "MATH101", "Calculus I", 10, 7).
		AddRow("off-2", "PHYS101", "Mechanics", 0, 0)
	mock.ExpectQuery(`FILTER \(WHERE a\.status = ANY\(\$2\)\)`).
		WithArgs("stu-1", pq.Array([]string{"PRESENT", "LATE"})).
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", []models.AttendanceStatus{
		models.AttendanceStatusPresent, models.AttendanceStatusLate,
	})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, 7, summary[0].PresentClasses)
	// an enrolled offering without attendance rows still appears with zeros
	assert.Equal(t, 0, summary[1].TotalClasses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryOfferingSheet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "total_classes", "present_classes"}).
		AddRow("stu-1", "Ada Lovelace", 10, 9)
	mock.ExpectQuery(`JOIN students s ON s\.id = e\.student_id`).
		WithArgs("off-1", pq.Array([]string{"PRESENT"})).
		WillReturnRows(rows)

	sheet, err := repo.OfferingSheet(context.Background(), "off-1", []models.AttendanceStatus{models.AttendanceStatusPresent})
	require.NoError(t, err)
	require.Len(t, sheet, 1)
	assert.Equal(t, "Ada Lovelace", sheet[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
