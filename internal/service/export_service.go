package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/internal/repository"
	"github.com/univera/campus-enroll-api/pkg/config"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
	"github.com/univera/campus-enroll-api/pkg/export"
	"github.com/univera/campus-enroll-api/pkg/jobs"
	"github.com/univera/campus-enroll-api/pkg/storage"
)

const exportJobType = "attendance_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type sheetReader interface {
	OfferingSheet(ctx context.Context, offeringID string, presentStatuses []models.AttendanceStatus) ([]models.AttendanceSheetRow, error)
}

type offeringDetailFinder interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

// ExportService generates attendance report files for an offering in the
// background. Requests are persisted as export jobs, rendered by a worker
// queue and served back through short-lived signed download URLs.
type ExportService struct {
	store     exportJobStore
	sheets    sheetReader
	offerings offeringDetailFinder
	present   []models.AttendanceStatus

	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	queue   *jobs.Queue
	fileTTL time.Duration

	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService wires the export pipeline. Start must be called before
// anything is enqueued.
func NewExportService(store exportJobStore, sheets sheetReader, offerings offeringDetailFinder, attendanceCfg config.AttendanceConfig, cfg config.ExportsConfig, files *storage.LocalStorage, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		store:     store,
		sheets:    sheets,
		offerings: offerings,
		present:   presentStatuses(attendanceCfg),
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		files:     files,
		signer:    storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL),
		fileTTL:   cfg.SignedURLTTL,
		validator: validator.New(),
		logger:    logger,
	}
	s.queue = jobs.NewQueue("attendance-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Create queues an attendance report for one offering. Faculty may only export
// their own offerings.
func (s *ExportService) Create(ctx context.Context, offeringID string, claims *models.JWTClaims, req dto.CreateExportRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
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

	job := &models.ExportJob{
		ID:         uuid.NewString(),
		OfferingID: offeringID,
		Format:     models.ExportFormat(req.Format),
		Status:     models.ExportStatusQueued,
		CreatedBy:  claims.UserID,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType, Payload: job.ID}); err != nil {
		s.failJob(ctx, job.ID, "export queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	s.logger.Info("export job queued",
		zap.String("job_id", job.ID),
		zap.String("offering_id", offeringID),
		zap.String("format", req.Format),
	)
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status reports job progress. Once the job is done it includes a signed,
// expiring download URL.
func (s *ExportService) Status(ctx context.Context, jobID string, claims *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if claims.Role != models.RoleAdmin && job.CreatedBy != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}

	resp := &dto.ExportStatusResponse{
		ID:           job.ID,
		OfferingID:   job.OfferingID,
		Format:       job.Format,
		Status:       job.Status,
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == models.ExportStatusDone && job.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		resp.DownloadURL = fmt.Sprintf("/api/v1/exports/download?token=%s", token)
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// Download resolves a signed token to the rendered file. The token itself is
// the authorization: no session is required.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusDone || job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, job, nil
}

// Cleanup removes files of jobs finished before the retention window. Meant to
// run on a ticker from main.
func (s *ExportService) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.fileTTL)
	finished, err := s.store.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("export cleanup listing failed", zap.Error(err))
		return
	}
	for _, job := range finished {
		if job.FilePath == nil {
			continue
		}
		if err := s.files.Delete(*job.FilePath); err != nil {
			s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.files.CleanupOlderThan(s.fileTTL); err != nil {
		s.logger.Warn("export directory cleanup failed", zap.Error(err))
	}
}

// process renders one queued job. Runs on the worker pool.
func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected export payload %T", job.Payload)
	}
	record, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.store.Update(ctx, jobID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	detail, err := s.offerings.FindDetailByID(ctx, record.OfferingID)
	if err != nil {
		s.failJob(ctx, jobID, "offering no longer exists")
		return nil
	}
	rows, err := s.sheets.OfferingSheet(ctx, record.OfferingID, s.present)
	if err != nil {
		s.failJob(ctx, jobID, "failed to read attendance sheet")
		return fmt.Errorf("offering sheet %s: %w", record.OfferingID, err)
	}

	dataset := sheetDataset(rows)
	var payload []byte
	switch record.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		title := fmt.Sprintf("Attendance - %s (%s)", detail.CourseName, detail.InstructorName)
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %q", record.Format)
	}
	if err != nil {
		s.failJob(ctx, jobID, "failed to render report")
		return fmt.Errorf("render export %s: %w", jobID, err)
	}

	filename := fmt.Sprintf("attendance/%s-%s.%s", record.OfferingID, jobID, record.Format)
	relPath, err := s.files.Save(filename, payload)
	if err != nil {
		s.failJob(ctx, jobID, "failed to store report")
		return fmt.Errorf("store export %s: %w", jobID, err)
	}

	done := models.ExportStatusDone
	full := 100
	now := time.Now().UTC()
	if err := s.store.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:     &done,
		Progress:   &full,
		FilePath:   &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark export done: %w", err)
	}
	s.logger.Info("export job finished", zap.String("job_id", jobID), zap.String("file", relPath))
	return nil
}

func (s *ExportService) failJob(ctx context.Context, jobID, message string) {
	failed := models.ExportStatusFailed
	now := time.Now().UTC()
	if err := s.store.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func sheetDataset(rows []models.AttendanceSheetRow) export.Dataset {
	headers := []string{"Student ID", "Student Name", "Total Classes", "Present", "Percentage"}
	out := export.Dataset{Headers: headers, Rows: make([]map[string]string, len(rows))}
	for i, row := range rows {
		out.Rows[i] = map[string]string{
			"Student ID":    row.StudentID,
			"Student Name":  row.StudentName,
			"Total Classes": strconv.Itoa(row.TotalClasses),
			"Present":       strconv.Itoa(row.PresentClasses),
			"Percentage":    fmt.Sprintf("%.1f", presentPercentage(row.PresentClasses, row.TotalClasses)),
		}
	}
	return out
}
