package handler

import (
	"bytes"
	"context"
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
	"github.com/univera/campus-enroll-api/internal/repository"
	"github.com/univera/campus-enroll-api/internal/service"
	"github.com/univera/campus-enroll-api/pkg/config"
)

type ledgerStub struct {
	commitErr error
	committed []models.Enrollment
	listed    []models.EnrollmentDetail
}

func (s *ledgerStub) CommitSelection(ctx context.Context, studentID string, offeringIDs []string) ([]models.Enrollment, error) {
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	out := make([]models.Enrollment, len(offeringIDs))
	for i, id := range offeringIDs {
		out[i] = models.Enrollment{ID: "enr-" + id, StudentID: studentID, OfferingID: id}
	}
	s.committed = out
	return out, nil
}

func (s *ledgerStub) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return s.listed, nil
}

type seatsStub struct {
	offerings map[string]models.OfferingDetail
}

func (s *seatsStub) SeatAvailability(ctx context.Context, ids []string) ([]models.OfferingDetail, error) {
	var out []models.OfferingDetail
	for _, id := range ids {
		if d, ok := s.offerings[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func newEnrollmentTestHandler(ledger *ledgerStub, seats *seatsStub) *EnrollmentHandler {
	policy := service.NewCreditPolicy(config.EnrollmentConfig{CreditCeiling: 30, CeilingPolicy: config.CeilingMax})
	cache := service.NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc := service.NewEnrollmentService(ledger, seats, policy, cache, service.NewMetricsService(), validator.New(), zap.NewNop())
	return NewEnrollmentHandler(svc)
}

func studentContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	return c, w
}

func TestEnrollmentHandlerSubmit(t *testing.T) {
	ledger := &ledgerStub{}
	seats := &seatsStub{offerings: map[string]models.OfferingDetail{
		"off-1": {Offering: models.Offering{ID: "off-1"}, Credits: 4, AvailableSeats: 5},
	}}
	handler := newEnrollmentTestHandler(ledger, seats)

	body, _ := json.Marshal(dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
	c, w := studentContext(t, http.MethodPost, "/enrollments", body)

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, ledger.committed, 1)

	var envelope struct {
		Data dto.SubmitEnrollmentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "stu-1", envelope.Data.StudentID)
	assert.Equal(t, []string{"off-1"}, envelope.Data.OfferingIDs)
}

func TestEnrollmentHandlerSubmitInvalidBody(t *testing.T) {
	handler := newEnrollmentTestHandler(&ledgerStub{}, &seatsStub{})

	c, w := studentContext(t, http.MethodPost, "/enrollments", []byte(`not-json`))
	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerSubmitSeatConflictStatus(t *testing.T) {
	ledger := &ledgerStub{commitErr: &repository.SeatConflictError{OfferingIDs: []string{"off-1"}}}
	seats := &seatsStub{offerings: map[string]models.OfferingDetail{
		"off-1": {Offering: models.Offering{ID: "off-1"}, Credits: 4, AvailableSeats: 1},
	}}
	handler := newEnrollmentTestHandler(ledger, seats)

	body, _ := json.Marshal(dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
	c, w := studentContext(t, http.MethodPost, "/enrollments", body)

	handler.Submit(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "INSUFFICIENT_SEATS", envelope.Error.Code)
}

func TestEnrollmentHandlerSubmitWithoutClaims(t *testing.T) {
	handler := newEnrollmentTestHandler(&ledgerStub{}, &seatsStub{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerListForStudentForbidden(t *testing.T) {
	handler := newEnrollmentTestHandler(&ledgerStub{}, &seatsStub{})

	c, w := studentContext(t, http.MethodGet, "/students/stu-2/enrollments", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "stu-2"}}

	handler.ListForStudent(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
