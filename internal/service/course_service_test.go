package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univera/campus-enroll-api/internal/models"
	appErrors "github.com/univera/campus-enroll-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses map[string]*models.Course
	deleted []string
}

func (f *fakeCourseRepo) List(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	for _, c := range f.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if f.courses == nil {
		f.courses = make(map[string]*models.Course)
	}
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) Delete(ctx context.Context, id string) error {
	delete(f.courses, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeOfferingCounter struct {
	counts map[string]int
}

func (f *fakeOfferingCounter) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return f.counts[courseID], nil
}

func TestCourseCreate(t *testing.T) {
	repo := &fakeCourseRepo{}
	svc := NewCourseService(repo, &fakeOfferingCounter{}, validator.New(), zap.NewNop())

	course, err := svc.Create(context.Background(), CreateCourseRequest{ID: "MATH101", Name: "Calculus I", Credits: 4})
	require.NoError(t, err)
	assert.Equal(t, "MATH101", course.ID)
	assert.Contains(t, repo.courses, "MATH101")
}

func TestCourseCreateRejectsDuplicateCode(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{"MATH101": {ID: "MATH101"}}}
	svc := NewCourseService(repo, &fakeOfferingCounter{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{ID: "MATH101", Name: "Calculus I", Credits: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateValidatesCredits(t *testing.T) {
	svc := NewCourseService(&fakeCourseRepo{}, &fakeOfferingCounter{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{ID: "MATH101", Name: "Calculus I", Credits: 9})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseDeleteBlockedByOfferings(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{"MATH101": {ID: "MATH101"}}}
	counter := &fakeOfferingCounter{counts: map[string]int{"MATH101": 2}}
	svc := NewCourseService(repo, counter, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "MATH101")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIntegrityConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestCourseDeleteWhenUnreferenced(t *testing.T) {
	repo := &fakeCourseRepo{courses: map[string]*models.Course{"MATH101": {ID: "MATH101"}}}
	svc := NewCourseService(repo, &fakeOfferingCounter{}, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "MATH101")
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH101"}, repo.deleted)
}
