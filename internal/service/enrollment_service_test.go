package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/dto"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/internal/repository"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
	"github.com/univera/campus-enroll-api/pkg/config"
)

// fakeLedger mimics the transactional commit: it holds per-offering capacity
// and enforces uniqueness and seat limits under a mutex, all-or-nothing.
type fakeLedger struct {
	mu         sync.Mutex
	capacity   map[string]int
	enrolled   map[string]map[string]bool // offering -> student set
	commitErr  error
	byStudent  map[string][]models.EnrollmentDetail
	commitRuns int
}

func newFakeLedger(capacity map[string]int) *fakeLedger {
	return &fakeLedger{
		capacity: capacity,
		enrolled: make(map[string]map[string]bool),
	}
}

func (f *fakeLedger) CommitSelection(ctx context.Context, studentID string, offeringIDs []string) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitRuns++
	if f.commitErr != nil {
		return nil, f.commitErr
	}

	var duplicates, full []string
	for _, id := range offeringIDs {
		if f.enrolled[id][studentID] {
			duplicates = append(duplicates, id)
		}
		if len(f.enrolled[id]) >= f.capacity[id] {
			full = append(full, id)
		}
	}
	if len(duplicates) > 0 {
		return nil, &repository.DuplicateEnrollmentError{OfferingIDs: duplicates}
	}
	if len(full) > 0 {
		return nil, &repository.SeatConflictError{OfferingIDs: full}
	}

	committed := make([]models.Enrollment, len(offeringIDs))
	for i, id := range offeringIDs {
		if f.enrolled[id] == nil {
			f.enrolled[id] = make(map[string]bool)
		}
		f.enrolled[id][studentID] = true
		committed[i] = models.Enrollment{ID: fmt.Sprintf("enr-%s-%s", studentID, id), StudentID: studentID, OfferingID: id}
	}
	return committed, nil
}

func (f *fakeLedger) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return f.byStudent[studentID], nil
}

type fakeSeatReader struct {
	offerings map[string]models.OfferingDetail
}

func (f *fakeSeatReader) SeatAvailability(ctx context.Context, ids []string) ([]models.OfferingDetail, error) {
	var out []models.OfferingDetail
	for _, id := range ids {
		if detail, ok := f.offerings[id]; ok {
			out = append(out, detail)
		}
	}
	return out, nil
}

func seatDetail(id string, credits, available int) models.OfferingDetail {
	return models.OfferingDetail{
		Offering:       models.Offering{ID: id},
		Credits:        credits,
		AvailableSeats: available,
	}
}

func openPolicy() *CreditPolicy {
	return NewCreditPolicy(config.EnrollmentConfig{CreditCeiling: 30, CeilingPolicy: config.CeilingMax})
}

func newTestEnrollmentService(ledger *fakeLedger, seats *fakeSeatReader, policy *CreditPolicy) *EnrollmentService {
	return NewEnrollmentService(ledger, seats, policy, NewCacheService(nil, nil, 0, zap.NewNop(), false), NewMetricsService(), validator.New(), zap.NewNop())
}

func TestEnrollmentSubmitCommitsWholeSelection(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10, "off-2": 10})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{
		"off-1": seatDetail("off-1", 5, 10),
		"off-2": seatDetail("off-2", 4, 10),
	}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	resp, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1", "off-2"}})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", resp.StudentID)
	assert.ElementsMatch(t, []string{"off-1", "off-2"}, resp.OfferingIDs)
	assert.True(t, ledger.enrolled["off-1"]["stu-1"])
	assert.True(t, ledger.enrolled["off-2"]["stu-1"])
}

func TestEnrollmentSubmitRejectsRepeatedOfferings(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{"off-1": seatDetail("off-1", 5, 10)}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	_, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1", "off-1"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Zero(t, ledger.commitRuns)
}

func TestEnrollmentSubmitUnknownOffering(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{"off-1": seatDetail("off-1", 5, 10)}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	_, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1", "ghost"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Zero(t, ledger.commitRuns)
}

func TestEnrollmentSubmitConstraintUnmet(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{"off-1": seatDetail("off-1", 3, 10)}}
	policy := NewCreditPolicy(config.EnrollmentConfig{
		Buckets:       map[int]int{5: 1, 3: 1},
		CreditCeiling: 25,
		CeilingPolicy: config.CeilingMax,
	})
	svc := newTestEnrollmentService(ledger, seats, policy)

	_, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConstraintUnmet.Code, appErr.Code)

	eval, ok := appErr.Details.(dto.CreditEvaluation)
	require.True(t, ok)
	assert.False(t, eval.Satisfied)
	require.Len(t, eval.Buckets, 1)
	assert.Equal(t, 5, eval.Buckets[0].Credits)
	assert.Zero(t, ledger.commitRuns)
}

func TestEnrollmentSubmitDuplicateEnrollment(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10})
	ledger.enrolled["off-1"] = map[string]bool{"stu-1": true}
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{"off-1": seatDetail("off-1", 5, 9)}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	_, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
}

func TestEnrollmentSubmitInsufficientSeatsIsAllOrNothing(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10, "off-2": 0})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{
		"off-1": seatDetail("off-1", 5, 10),
		"off-2": seatDetail("off-2", 4, 0),
	}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	_, err := svc.Submit(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1", "off-2"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInsufficientSeats.Code, appErr.Code)
	// the offering with room must not have gained a row
	assert.False(t, ledger.enrolled["off-1"]["stu-1"])
}

func TestEnrollmentSubmitNeverOversellsUnderContention(t *testing.T) {
	const capacity = 5
	const contenders = 40

	ledger := newFakeLedger(map[string]int{"off-1": capacity})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{"off-1": seatDetail("off-1", 5, capacity)}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			student := fmt.Sprintf("stu-%d", n)
			_, errs[n] = svc.Submit(context.Background(), student, dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1"}})
		}(i)
	}
	wg.Wait()

	committed := 0
	rejected := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		appErr := appErrors.FromError(err)
		require.Equal(t, appErrors.ErrInsufficientSeats.Code, appErr.Code)
		rejected++
	}
	assert.Equal(t, capacity, committed)
	assert.Equal(t, contenders-capacity, rejected)
	assert.Len(t, ledger.enrolled["off-1"], capacity)
}

func TestEnrollmentPreviewReportsFullOfferings(t *testing.T) {
	ledger := newFakeLedger(map[string]int{"off-1": 10, "off-2": 10})
	seats := &fakeSeatReader{offerings: map[string]models.OfferingDetail{
		"off-1": seatDetail("off-1", 5, 3),
		"off-2": seatDetail("off-2", 4, 0),
	}}
	svc := newTestEnrollmentService(ledger, seats, openPolicy())

	resp, err := svc.Preview(context.Background(), "stu-1", dto.SubmitEnrollmentRequest{OfferingIDs: []string{"off-1", "off-2"}})
	require.NoError(t, err)
	assert.True(t, resp.Evaluation.Satisfied)
	assert.Equal(t, []string{"off-2"}, resp.FullOfferings)
	assert.Zero(t, ledger.commitRuns)
}

func TestEnrollmentListForStudent(t *testing.T) {
	ledger := newFakeLedger(nil)
	ledger.byStudent = map[string][]models.EnrollmentDetail{
		"stu-1": {{Enrollment: models.Enrollment{ID: "e1", StudentID: "stu-1", OfferingID: "off-1"}}},
	}
	svc := newTestEnrollmentService(ledger, &fakeSeatReader{}, openPolicy())

	list, err := svc.ListForStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "off-1", list[0].OfferingID)
}
