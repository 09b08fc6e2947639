package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/internal/middleware"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/internal/service"
	"github.com/univera/campus-enroll-api/pkg/config"
)

type attendanceLedgerStub struct {
	upserted []models.AttendanceRecord
	summary  []models.AttendanceSummaryRow
}

func (s *attendanceLedgerStub) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) (int, error) {
	s.upserted = records
	return len(records), nil
}

func (s *attendanceLedgerStub) StudentSummary(ctx context.Context, studentID string, presentStatuses []models.AttendanceStatus) ([]models.AttendanceSummaryRow, error) {
	return s.summary, nil
}

type offeringFinderStub struct {
	offering *models.Offering
}

func (s *offeringFinderStub) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	if s.offering == nil || s.offering.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.offering, nil
}

type rosterReaderStub struct {
	enrolled map[string]bool
	roster   []models.RosterEntry
}

func (s *rosterReaderStub) EnrolledSubset(ctx context.Context, offeringID string, studentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if s.enrolled[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (s *rosterReaderStub) Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	return s.roster, nil
}

func newAttendanceTestHandler(ledger *attendanceLedgerStub, offerings *offeringFinderStub, enrollments *rosterReaderStub) *AttendanceHandler {
	svc := service.NewAttendanceService(ledger, offerings, enrollments, config.AttendanceConfig{}, service.NewMetricsService(), validator.New(), zap.NewNop())
	return NewAttendanceHandler(svc)
}

func facultyContext(t *testing.T, method, path string, body []byte, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleFaculty})
	return c, w
}

func TestAttendanceHandlerMark(t *testing.T) {
	ledger := &attendanceLedgerStub{}
	offerings := &offeringFinderStub{offering: &models.Offering{ID: "off-1", InstructorID: "fac-1"}}
	roster := &rosterReaderStub{enrolled: map[string]bool{"stu-1": true, "stu-2": true}}
	handler := newAttendanceTestHandler(ledger, offerings, roster)

	body, _ := json.Marshal(dto.MarkAttendanceRequest{
		Date: "2026-03-02",
		Entries: []dto.AttendanceMarkEntry{
			{StudentID: "stu-1", Status: "PRESENT"},
			{StudentID: "stu-2", Status: "ABSENT"},
		},
	})
	c, w := facultyContext(t, http.MethodPost, "/offerings/off-1/attendance", body, "fac-1")
	c.Params = gin.Params{{Key: "id", Value: "off-1"}}

	handler.Mark(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ledger.upserted, 2)

	var envelope struct {
		Data dto.MarkAttendanceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.UpsertedCount)
}

func TestAttendanceHandlerMarkNotInstructor(t *testing.T) {
	offerings := &offeringFinderStub{offering: &models.Offering{ID: "off-1", InstructorID: "fac-1"}}
	roster := &rosterReaderStub{enrolled: map[string]bool{"stu-1": true}}
	handler := newAttendanceTestHandler(&attendanceLedgerStub{}, offerings, roster)

	body, _ := json.Marshal(dto.MarkAttendanceRequest{
		Date:    "2026-03-02",
		Entries: []dto.AttendanceMarkEntry{{StudentID: "stu-1", Status: "PRESENT"}},
	})
	c, w := facultyContext(t, http.MethodPost, "/offerings/off-1/attendance", body, "fac-2")
	c.Params = gin.Params{{Key: "id", Value: "off-1"}}

	handler.Mark(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAttendanceHandlerMarkInvalidBody(t *testing.T) {
	handler := newAttendanceTestHandler(&attendanceLedgerStub{}, &offeringFinderStub{}, &rosterReaderStub{})

	c, w := facultyContext(t, http.MethodPost, "/offerings/off-1/attendance", []byte(`{`), "fac-1")
	c.Params = gin.Params{{Key: "id", Value: "off-1"}}

	handler.Mark(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerSummaryForStudentSelf(t *testing.T) {
	ledger := &attendanceLedgerStub{summary: []models.AttendanceSummaryRow{
		{OfferingID: "off-1", TotalClasses: 10, PresentClasses: 7, Percentage: 70.0},
	}}
	handler := newAttendanceTestHandler(ledger, &offeringFinderStub{}, &rosterReaderStub{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/stu-1/attendance", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.SummaryForStudent(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.AttendanceSummaryRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.InDelta(t, 70.0, envelope.Data[0].Percentage, 0.01)
}

func TestAttendanceHandlerSummaryForStudentForbidden(t *testing.T) {
	handler := newAttendanceTestHandler(&attendanceLedgerStub{}, &offeringFinderStub{}, &rosterReaderStub{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/stu-2/attendance", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "stu-2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.SummaryForStudent(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
