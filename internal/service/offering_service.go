package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/models"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
)

const offeringCachePattern = "offerings:*"

type offeringRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	ExistsForCourseInstructor(ctx context.Context, courseID, instructorID string) (bool, error)
	Create(ctx context.Context, offering *models.Offering) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type instructorChecker interface {
	InstructorExists(ctx context.Context, id string) (bool, error)
}

type enrollmentCounter interface {
	CountByOffering(ctx context.Context, offeringID string) (int, error)
}

// CreateOfferingRequest describes an offering creation payload. Capacity is
// optional; the configured default applies when omitted.
type CreateOfferingRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	InstructorID string `json:"instructor_id" validate:"required"`
	Capacity     *int   `json:"capacity" validate:"omitempty,min=0"`
}

// offeringListPayload is the cached shape for offering listings.
type offeringListPayload struct {
	Offerings  []models.OfferingDetail `json:"offerings"`
	Pagination models.Pagination       `json:"pagination"`
}

// OfferingService manages course offerings and their live seat figures.
type OfferingService struct {
	repo            offeringRepository
	courses         courseReader
	instructors     instructorChecker
	enrollments     enrollmentCounter
	cache           *CacheService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultCapacity int
}

// NewOfferingService constructs OfferingService.
func NewOfferingService(repo offeringRepository, courses courseReader, instructors instructorChecker, enrollments enrollmentCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaultCapacity int) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCapacity <= 0 {
		defaultCapacity = 60
	}
	return &OfferingService{
		repo:            repo,
		courses:         courses,
		instructors:     instructors,
		enrollments:     enrollments,
		cache:           cache,
		validator:       validate,
		logger:          logger,
		defaultCapacity: defaultCapacity,
	}
}

// List returns offerings with live enrolled/available counts. Listings are
// briefly cached; every enrollment commit and offering mutation invalidates
// the cache so stale seat figures stay within the configured TTL.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	key := fmt.Sprintf("offerings:list:%s:%s:%d:%d:%s:%s", filter.CourseID, filter.InstructorID, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	var cached offeringListPayload
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		pagination := cached.Pagination
		return cached.Offerings, &pagination, nil
	}

	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	_ = s.cache.Set(ctx, key, offeringListPayload{Offerings: offerings, Pagination: *pagination}, 0)
	return offerings, pagination, nil
}

// Get returns one offering with live seat counts.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return detail, nil
}

// Create registers a new offering for a course and instructor.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.OfferingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.instructors.InstructorExists(ctx, req.InstructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
	}
	duplicate, err := s.repo.ExistsForCourseInstructor(ctx, req.CourseID, req.InstructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check offering uniqueness")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "offering already exists for course and instructor")
	}

	capacity := s.defaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	offering := &models.Offering{CourseID: req.CourseID, InstructorID: req.InstructorID, Capacity: capacity}
	if err := s.repo.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	_ = s.cache.Invalidate(ctx, offeringCachePattern)

	detail, err := s.repo.FindDetailByID(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering detail")
	}
	return detail, nil
}

// Delete removes an offering unless enrollments still reference it. Deletion
// never cascades into the enrollment ledger.
func (s *OfferingService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	count, err := s.enrollments.CountByOffering(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrIntegrityConflict, "offering has enrollments and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
	}
	_ = s.cache.Invalidate(ctx, offeringCachePattern)
	return nil
}
