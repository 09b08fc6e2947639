package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/univera/campus-enroll-api/internal/models"
)

// AttendanceRepository handles persistence of the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// BulkUpsert writes a roster of statuses for one offering and date in a single
// transaction. Existing (student, offering, date) rows are overwritten with the
// new status; nothing is duplicated and no partial batch is ever visible.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin attendance upsert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO attendance_records (id, student_id, offering_id, date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, offering_id, date)
DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query, rec.ID, rec.StudentID, rec.OfferingID, rec.Date, rec.Status, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return 0, fmt.Errorf("upsert attendance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attendance upsert: %w", err)
	}
	committed = true
	return len(records), nil
}

// ListByOfferingDate returns the recorded statuses for an offering on a date.
func (r *AttendanceRepository) ListByOfferingDate(ctx context.Context, offeringID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, offering_id, date, status, created_at, updated_at
        FROM attendance_records
        WHERE offering_id = $1 AND date = $2
        ORDER BY student_id`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, offeringID, date); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// StudentSummary aggregates total and present class counts per offering the
// student is enrolled in. Offerings without attendance rows report zero totals.
// The statuses counting as present are passed in so the Late/Excused rule stays
// a configuration decision.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string, presentStatuses []models.AttendanceStatus) ([]models.AttendanceSummaryRow, error) {
	const query = `SELECT o.id AS offering_id, c.id AS course_id, c.name AS course_name,
        COUNT(a.id) AS total_classes,
        COUNT(a.id) FILTER (WHERE a.status = ANY($2)) AS present_classes
        FROM enrollments e
        JOIN offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        LEFT JOIN attendance_records a ON a.offering_id = e.offering_id AND a.student_id = e.student_id
        WHERE e.student_id = $1
        GROUP BY o.id, c.id, c.name
        ORDER BY c.id`
	var rows []models.AttendanceSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, pq.Array(statusStrings(presentStatuses))); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	return rows, nil
}

// OfferingSheet aggregates per-student counts for one offering, for report
// exports.
func (r *AttendanceRepository) OfferingSheet(ctx context.Context, offeringID string, presentStatuses []models.AttendanceStatus) ([]models.AttendanceSheetRow, error) {
	const query = `SELECT e.student_id, s.full_name AS student_name,
        COUNT(a.id) AS total_classes,
        COUNT(a.id) FILTER (WHERE a.status = ANY($2)) AS present_classes
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        LEFT JOIN attendance_records a ON a.offering_id = e.offering_id AND a.student_id = e.student_id
        WHERE e.offering_id = $1
        GROUP BY e.student_id, s.full_name
        ORDER BY s.full_name`
	var rows []models.AttendanceSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, offeringID, pq.Array(statusStrings(presentStatuses))); err != nil {
		return nil, fmt.Errorf("offering attendance sheet: %w", err)
	}
	return rows, nil
}

func statusStrings(statuses []models.AttendanceStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
