package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/univera/campus-enroll-api/internal/models"
)

// pgUniqueViolation is the Postgres error code for unique constraint failures.
const pgUniqueViolation = "23505"

// EnrollmentRepository is the sole writer of the enrollment ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByStudent returns the student's enrollments with course display fields.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.offering_id, e.enrolled_at,
        c.id AS course_id, c.name AS course_name, c.credits, i.full_name AS instructor_name
        FROM enrollments e
        JOIN offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN instructors i ON i.id = o.instructor_id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_at`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// Roster returns the students enrolled in an offering.
func (r *EnrollmentRepository) Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_id, s.full_name AS student_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.offering_id = $1
        ORDER BY s.full_name`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, offeringID); err != nil {
		return nil, fmt.Errorf("offering roster: %w", err)
	}
	return roster, nil
}

// EnrolledSubset returns which of the given student ids hold an enrollment in
// the offering. Used to validate attendance roster submissions.
func (r *EnrollmentRepository) EnrolledSubset(ctx context.Context, offeringID string, studentIDs []string) (map[string]bool, error) {
	if len(studentIDs) == 0 {
		return map[string]bool{}, nil
	}
	const query = `SELECT student_id FROM enrollments WHERE offering_id = $1 AND student_id = ANY($2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, offeringID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("check enrolled students: %w", err)
	}
	enrolled := make(map[string]bool, len(ids))
	for _, id := range ids {
		enrolled[id] = true
	}
	return enrolled, nil
}

// CountByOffering returns the committed enrollment count for an offering from
// a single consistent read. Used by the offering deletion guard.
func (r *EnrollmentRepository) CountByOffering(ctx context.Context, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID); err != nil {
		return 0, fmt.Errorf("count offering enrollments: %w", err)
	}
	return count, nil
}

// CommitSelection writes one enrollment row per offering as a single atomic
// unit. The offering rows are locked in deterministic order, the live seat
// counts re-read under those locks, and the whole transaction aborted the
// moment any offering is full or already held by the student. Either every
// offering in the selection lands or none does.
//
// The unique constraint on (student_id, offering_id) backstops the duplicate
// check for submissions racing against each other.
func (r *EnrollmentRepository) CommitSelection(ctx context.Context, studentID string, offeringIDs []string) ([]models.Enrollment, error) {
	if len(offeringIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(offeringIDs))
	copy(ids, offeringIDs)
	sort.Strings(ids)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment commit: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the offering rows so the seat re-read below cannot race another
	// submission; deterministic ordering avoids lock cycles between overlapping
	// selections.
	const lockQuery = `SELECT o.id, c.credits, o.capacity
        FROM offerings o
        JOIN courses c ON c.id = o.course_id
        WHERE o.id = ANY($1)
        ORDER BY o.id
        FOR UPDATE OF o`
	var seats []models.OfferingSeat
	if err := tx.SelectContext(ctx, &seats, lockQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock offerings: %w", err)
	}
	if len(seats) != len(ids) {
		found := make(map[string]bool, len(seats))
		for _, seat := range seats {
			found[seat.ID] = true
		}
		missing := make([]string, 0, len(ids)-len(seats))
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, &MissingOfferingsError{OfferingIDs: missing}
	}

	const duplicateQuery = `SELECT offering_id FROM enrollments WHERE student_id = $1 AND offering_id = ANY($2) ORDER BY offering_id`
	var duplicates []string
	if err := tx.SelectContext(ctx, &duplicates, duplicateQuery, studentID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("check duplicate enrollments: %w", err)
	}
	if len(duplicates) > 0 {
		return nil, &DuplicateEnrollmentError{OfferingIDs: duplicates}
	}

	const countQuery = `SELECT offering_id, COUNT(*) AS cnt FROM enrollments WHERE offering_id = ANY($1) GROUP BY offering_id`
	counts := []struct {
		OfferingID string `db:"offering_id"`
		Count      int    `db:"cnt"`
	}{}
	if err := tx.SelectContext(ctx, &counts, countQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	enrolled := make(map[string]int, len(counts))
	for _, row := range counts {
		enrolled[row.OfferingID] = row.Count
	}
	var full []string
	for _, seat := range seats {
		if seat.Capacity-enrolled[seat.ID] < 1 {
			full = append(full, seat.ID)
		}
	}
	if len(full) > 0 {
		return nil, &SeatConflictError{OfferingIDs: full}
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO enrollments (id, student_id, offering_id, enrolled_at)
        VALUES ($1, $2, $3, $4)`
	enrollments := make([]models.Enrollment, 0, len(ids))
	for _, id := range ids {
		enrollment := models.Enrollment{
			ID:         uuid.NewString(),
			StudentID:  studentID,
			OfferingID: id,
			EnrolledAt: now,
		}
		if _, err := tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.StudentID, enrollment.OfferingID, enrollment.EnrolledAt); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgUniqueViolation {
				return nil, &DuplicateEnrollmentError{OfferingIDs: []string{id}}
			}
			return nil, fmt.Errorf("insert enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment selection: %w", err)
	}
	committed = true
	return enrollments, nil
}
