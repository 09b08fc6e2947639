package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/pkg/config"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
)

const attendanceDateLayout = "2006-01-02"

type attendanceLedger interface {
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) (int, error)
	StudentSummary(ctx context.Context, studentID string, presentStatuses []models.AttendanceStatus) ([]models.AttendanceSummaryRow, error)
}

type offeringFinder interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
}

type rosterReader interface {
	EnrolledSubset(ctx context.Context, offeringID string, studentIDs []string) (map[string]bool, error)
	Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error)
}

// AttendanceService keeps the attendance ledger: idempotent roster marking by
// instructors and per-student summaries. Marking the same (student, offering,
// date) again overwrites the status instead of piling up rows.
type AttendanceService struct {
	ledger      attendanceLedger
	offerings   offeringFinder
	enrollments rosterReader
	present     []models.AttendanceStatus
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(ledger attendanceLedger, offerings offeringFinder, enrollments rosterReader, cfg config.AttendanceConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		ledger:      ledger,
		offerings:   offerings,
		enrollments: enrollments,
		present:     presentStatuses(cfg),
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// presentStatuses resolves which statuses count toward the present percentage.
func presentStatuses(cfg config.AttendanceConfig) []models.AttendanceStatus {
	statuses := []models.AttendanceStatus{models.AttendanceStatusPresent}
	if cfg.CountLateAsPresent {
		statuses = append(statuses, models.AttendanceStatusLate)
	}
	if cfg.CountExcusedAsPresent {
		statuses = append(statuses, models.AttendanceStatusExcused)
	}
	return statuses
}

// Mark records a roster of statuses for one offering and date. Only the
// offering's instructor (or an admin) may mark, and every student in the batch
// must be enrolled. Repeat submissions overwrite earlier statuses.
func (s *AttendanceService) Mark(ctx context.Context, offeringID string, claims *models.JWTClaims, req dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.ParseInLocation(attendanceDateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD format")
	}

	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if claims.Role != models.RoleAdmin && offering.InstructorID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this offering")
	}

	studentIDs := make([]string, 0, len(req.Entries))
	seen := make(map[string]bool, len(req.Entries))
	for _, entry := range req.Entries {
		status := models.AttendanceStatus(entry.Status)
		if !status.Valid() {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, "unsupported attendance status", map[string]interface{}{"student_id": entry.StudentID, "status": entry.Status})
		}
		if seen[entry.StudentID] {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, "student listed more than once", map[string]interface{}{"student_id": entry.StudentID})
		}
		seen[entry.StudentID] = true
		studentIDs = append(studentIDs, entry.StudentID)
	}

	enrolled, err := s.enrollments.EnrolledSubset(ctx, offeringID, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	var unenrolled []string
	for _, id := range studentIDs {
		if !enrolled[id] {
			unenrolled = append(unenrolled, id)
		}
	}
	if len(unenrolled) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "students not enrolled in offering", map[string]interface{}{"student_ids": unenrolled})
	}

	records := make([]models.AttendanceRecord, len(req.Entries))
	for i, entry := range req.Entries {
		records[i] = models.AttendanceRecord{
			StudentID:  entry.StudentID,
			OfferingID: offeringID,
			Date:       date,
			Status:     models.AttendanceStatus(entry.Status),
		}
	}
	count, err := s.ledger.BulkUpsert(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.metrics.RecordAttendanceUpsert(count)
	s.logger.Info("attendance marked",
		zap.String("offering_id", offeringID),
		zap.String("date", req.Date),
		zap.Int("rows", count),
	)
	return &dto.MarkAttendanceResponse{UpsertedCount: count}, nil
}

// Summary returns the student's per-offering attendance aggregates with the
// present percentage rounded to one decimal. Offerings with no recorded
// classes report 0, never a division error.
func (s *AttendanceService) Summary(ctx context.Context, studentID string) ([]models.AttendanceSummaryRow, error) {
	rows, err := s.ledger.StudentSummary(ctx, studentID, s.present)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}
	for i := range rows {
		rows[i].Percentage = presentPercentage(rows[i].PresentClasses, rows[i].TotalClasses)
	}
	return rows, nil
}

// Roster lists the enrolled students of an offering for the instructor taking
// attendance.
func (s *AttendanceService) Roster(ctx context.Context, offeringID string, claims *models.JWTClaims) ([]models.RosterEntry, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if claims.Role != models.RoleAdmin && offering.InstructorID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this offering")
	}
	entries, err := s.enrollments.Roster(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return entries, nil
}

func presentPercentage(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(present)/float64(total)*1000) / 10
}
