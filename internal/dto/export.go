package dto

import (
	"time"

	"github.com/univera/campus-enroll-api/internal/models"
)

// CreateExportRequest asks for an attendance report of one offering.
type CreateExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse reports the queued job.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and, once done, a signed download URL.
type ExportStatusResponse struct {
	ID           string              `json:"id"`
	OfferingID   string              `json:"offering_id"`
	Format       models.ExportFormat `json:"format"`
	Status       models.ExportStatus `json:"status"`
	Progress     int                 `json:"progress"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	DownloadURL  string              `json:"download_url,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
}
