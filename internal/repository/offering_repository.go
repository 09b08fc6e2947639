package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/univera/campus-enroll-api/internal/models"
)

// OfferingRepository handles persistence of course offerings. Seat counts are
// always derived from the enrollments table in the query itself; the offerings
// row carries capacity only.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringDetailColumns = `o.id, o.course_id, o.instructor_id, o.capacity, o.created_at,
        c.name AS course_name, c.credits, i.full_name AS instructor_name,
        COUNT(e.id) AS enrolled_count,
        GREATEST(o.capacity - COUNT(e.id), 0) AS available_seats`

const offeringDetailBase = `FROM offerings o
JOIN courses c ON c.id = o.course_id
JOIN instructors i ON i.id = o.instructor_id
LEFT JOIN enrollments e ON e.offering_id = o.id`

const offeringDetailGroup = `GROUP BY o.id, o.course_id, o.instructor_id, o.capacity, o.created_at, c.name, c.credits, i.full_name`

// List returns offerings with live seat figures, filtered and paginated.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("o.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		where = append(where, fmt.Sprintf("o.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSorts := map[string]string{
		"course_name":     "c.name",
		"instructor_name": "i.full_name",
		"created_at":      "o.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "course_name"
	}
	orderBy, ok := allowedSorts[sortBy]
	if !ok {
		orderBy = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
        %s WHERE %s
        %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, offeringDetailColumns, offeringDetailBase, whereClause, offeringDetailGroup, orderBy, order, size, offset)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM offerings o WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// FindByID returns an offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	const query = `SELECT id, course_id, instructor_id, capacity, created_at FROM offerings WHERE id = $1`
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// FindDetailByID returns an offering with display fields and live seat counts.
func (r *OfferingRepository) FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        %s WHERE o.id = $1
        %s`, offeringDetailColumns, offeringDetailBase, offeringDetailGroup)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SeatAvailability returns capacity, credits and the current enrollment count
// for each requested offering in one consistent read. Missing ids are simply
// absent from the result.
func (r *OfferingRepository) SeatAvailability(ctx context.Context, ids []string) ([]models.OfferingDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s
        %s WHERE o.id = ANY($1)
        %s`, offeringDetailColumns, offeringDetailBase, offeringDetailGroup)
	var details []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &details, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("offering seat availability: %w", err)
	}
	return details, nil
}

// ExistsForCourseInstructor checks the (course, instructor) uniqueness invariant.
func (r *OfferingRepository) ExistsForCourseInstructor(ctx context.Context, courseID, instructorID string) (bool, error) {
	const query = `SELECT 1 FROM offerings WHERE course_id = $1 AND instructor_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, instructorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check offering uniqueness: %w", err)
	}
	return true, nil
}

// Create persists a new offering record.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO offerings (id, course_id, instructor_id, capacity, created_at)
        VALUES (:id, :course_id, :instructor_id, :capacity, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// Delete removes an offering. Callers must check for live enrollments first.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM offerings WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByCourse returns how many offerings reference a course. Used by the
// course deletion guard.
func (r *OfferingRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM offerings WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count offerings for course: %w", err)
	}
	return count, nil
}
