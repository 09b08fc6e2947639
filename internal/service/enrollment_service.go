package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/internal/repository"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
)

type enrollmentLedger interface {
	CommitSelection(ctx context.Context, studentID string, offeringIDs []string) ([]models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type seatReader interface {
	SeatAvailability(ctx context.Context, ids []string) ([]models.OfferingDetail, error)
}

// EnrollmentService is the enrollment engine: it validates a student's
// proposed selection against the credit policy, re-checks live capacity under
// locks and commits the whole selection atomically. Client-side evaluation is
// advisory only; everything is re-validated here.
type EnrollmentService struct {
	ledger    enrollmentLedger
	seats     seatReader
	policy    *CreditPolicy
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(ledger enrollmentLedger, seats seatReader, policy *CreditPolicy, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		ledger:    ledger,
		seats:     seats,
		policy:    policy,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit commits a student's selection as a single atomic unit. On any
// failure no enrollment row is written: the whole proposed set lands or none
// does.
func (s *EnrollmentService) Submit(ctx context.Context, studentID string, req dto.SubmitEnrollmentRequest) (*dto.SubmitEnrollmentResponse, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if repeated := repeatedIDs(req.OfferingIDs); len(repeated) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "selection lists an offering more than once", map[string]interface{}{"offering_ids": repeated})
	}

	details, err := s.seats.SeatAvailability(ctx, req.OfferingIDs)
	if err != nil {
		s.metrics.RecordEnrollmentCommit("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offerings")
	}
	if missing := missingIDs(req.OfferingIDs, details); len(missing) > 0 {
		s.metrics.RecordEnrollmentCommit("unknown_offering")
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "unknown offerings in selection", map[string]interface{}{"offering_ids": missing})
	}

	credits := make([]int, len(details))
	for i, detail := range details {
		credits[i] = detail.Credits
	}
	eval := s.policy.Evaluate(credits)
	if !eval.Satisfied {
		s.metrics.RecordEnrollmentCommit("constraint_unmet")
		return nil, appErrors.WithDetails(appErrors.ErrConstraintUnmet, "credit constraints not satisfied", eval)
	}

	committed, err := s.ledger.CommitSelection(ctx, studentID, req.OfferingIDs)
	if err != nil {
		var seatErr *repository.SeatConflictError
		if errors.As(err, &seatErr) {
			s.metrics.RecordEnrollmentCommit("insufficient_seats")
			return nil, appErrors.WithDetails(appErrors.ErrInsufficientSeats, "offerings ran out of seats", map[string]interface{}{"offering_ids": seatErr.OfferingIDs})
		}
		var dupErr *repository.DuplicateEnrollmentError
		if errors.As(err, &dupErr) {
			s.metrics.RecordEnrollmentCommit("duplicate")
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "already enrolled in offerings", map[string]interface{}{"offering_ids": dupErr.OfferingIDs})
		}
		var missingErr *repository.MissingOfferingsError
		if errors.As(err, &missingErr) {
			s.metrics.RecordEnrollmentCommit("unknown_offering")
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "unknown offerings in selection", map[string]interface{}{"offering_ids": missingErr.OfferingIDs})
		}
		s.metrics.RecordEnrollmentCommit("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit enrollment")
	}

	s.metrics.RecordEnrollmentCommit("committed")
	_ = s.cache.Invalidate(ctx, offeringCachePattern)

	ids := make([]string, len(committed))
	for i, enrollment := range committed {
		ids[i] = enrollment.OfferingID
	}
	s.logger.Info("enrollment committed",
		zap.String("student_id", studentID),
		zap.Int("offerings", len(ids)),
	)
	return &dto.SubmitEnrollmentResponse{StudentID: studentID, OfferingIDs: ids}, nil
}

// Preview evaluates a candidate selection without committing anything. The
// seat figures come from an unlocked read, so the result is advisory.
func (s *EnrollmentService) Preview(ctx context.Context, studentID string, req dto.SubmitEnrollmentRequest) (*dto.EnrollmentPreviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	details, err := s.seats.SeatAvailability(ctx, req.OfferingIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offerings")
	}
	if missing := missingIDs(req.OfferingIDs, details); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "unknown offerings in selection", map[string]interface{}{"offering_ids": missing})
	}

	credits := make([]int, len(details))
	var full []string
	for i, detail := range details {
		credits[i] = detail.Credits
		if detail.AvailableSeats < 1 {
			full = append(full, detail.ID)
		}
	}
	return &dto.EnrollmentPreviewResponse{Evaluation: s.policy.Evaluate(credits), FullOfferings: full}, nil
}

// ListForStudent returns a student's committed enrollments.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func repeatedIDs(ids []string) []string {
	seen := make(map[string]int, len(ids))
	var repeated []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			repeated = append(repeated, id)
		}
	}
	return repeated
}

func missingIDs(requested []string, found []models.OfferingDetail) []string {
	present := make(map[string]bool, len(found))
	for _, detail := range found {
		present[detail.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
