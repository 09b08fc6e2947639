package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/univera/campus-enroll-api/internal/models"
)

func offeringDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "course_id", "instructor_id", "capacity", "created_at",
		"course_name", "credits", "instructor_name", "enrolled_count", "available_seats",
	})
}

func TestOfferingRepositoryListDerivesSeats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(`GREATEST\(o\.capacity - COUNT\(e\.id\), 0\)`).
		WithArgs("MATH101").
		WillReturnRows(offeringDetailRows().
			AddRow("off-1", "MATH101", "fac-1", 30, time.Now(), "Calculus I", 4, "Dr. Noether", 12, 18))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM offerings o`).
		WithArgs("MATH101").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	offerings, total, err := repo.List(context.Background(), models.OfferingFilter{CourseID: "MATH101"})
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.Equal(t, 12, offerings[0].EnrolledCount)
	assert.Equal(t, 18, offerings[0].AvailableSeats)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositorySeatAvailability(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(`WHERE o\.id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"off-1", "ghost"})).
		WillReturnRows(offeringDetailRows().
			AddRow("off-1", "MATH101", "fac-1", 30, time.Now(), "Calculus I", 4, "Dr. Noether", 30, 0))

	details, err := repo.SeatAvailability(context.Background(), []string{"off-1", "ghost"})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 0, details[0].AvailableSeats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryExistsForCourseInstructor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM offerings`).
		WithArgs("MATH101", "fac-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsForCourseInstructor(context.Background(), "MATH101", "fac-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(`SELECT 1 FROM offerings`).
		WithArgs("MATH101", "fac-2").
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsForCourseInstructor(context.Background(), "MATH101", "fac-2")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectExec(`DELETE FROM offerings`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
