package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yigit/coursecred/internal/app/catalog"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/helpers"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// Popular course listing bounds
const (
	DefaultPopularLimit = 10
	MaxPopularLimit     = 100
)

const recalculateBatchSize = 200

// CompletionListener is notified once per enrollment, right after the update
// that completed it has been stored.
type CompletionListener func(ctx context.Context, enrollment *models.Enrollment)

// EnrollmentService is the enrollment ledger: enrollment state and progress.
type EnrollmentService interface {
	Enroll(ctx context.Context, userID, courseID int64) (*models.Enrollment, error)
	UpdateProgress(ctx context.Context, userID, courseID, moduleID int64, percentage int) (*models.ProgressUpdate, error)
	GetProgress(ctx context.Context, userID, courseID int64) (int, error)
	GetEnrollment(ctx context.Context, userID, courseID int64) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, userID int64) ([]*models.Enrollment, error)
	ListModuleProgress(ctx context.Context, userID, courseID int64) ([]*models.ProgressRecord, error)
	DashboardSummary(ctx context.Context, userID int64) (*models.DashboardSummary, error)
	PopularCourses(ctx context.Context, limit int) ([]*models.CoursePopularity, error)
	RecalculateProgress(ctx context.Context, enrollmentID int64) (*models.ProgressUpdate, error)
	RecalculateAll(ctx context.Context) (int, error)
	OnCompletion(listener CompletionListener)
}

type enrollmentServiceImpl struct {
	store   EnrollmentStore
	catalog catalog.Catalog
	policy  ProgressPolicy
	now     func() time.Time

	mu        sync.RWMutex
	listeners []CompletionListener
}

// NewEnrollmentService creates a new enrollment service. A nil catalog skips
// course resolution; a nil policy selects MaxPolicy.
func NewEnrollmentService(store EnrollmentStore, courses catalog.Catalog, policy ProgressPolicy) EnrollmentService {
	if policy == nil {
		policy = MaxPolicy{}
	}
	return &enrollmentServiceImpl{
		store:   store,
		catalog: courses,
		policy:  policy,
		now:     helpers.UTCNow,
	}
}

// OnCompletion registers a listener for completed enrollments.
func (s *enrollmentServiceImpl) OnCompletion(listener CompletionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func validatePair(userID, courseID int64) error {
	if !models.ValidID(userID) {
		return apperrors.ErrInvalidUser
	}
	if !models.ValidID(courseID) {
		return apperrors.ErrInvalidCourse
	}
	return nil
}

// resolveCourse returns the catalog entry of courseID, or nil when no catalog
// is configured. Unknown courses are reported as ErrInvalidCourse.
func resolveCourse(ctx context.Context, courses catalog.Catalog, courseID int64) (*models.Course, error) {
	if courses == nil {
		return nil, nil
	}
	course, err := courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCourseNotFound) {
			return nil, apperrors.ErrInvalidCourse
		}
		return nil, fmt.Errorf("failed to resolve course %d: %w", courseID, err)
	}
	return course, nil
}

// Enroll creates an active enrollment. A second call for the same pair fails
// with ErrAlreadyEnrolled.
func (s *enrollmentServiceImpl) Enroll(ctx context.Context, userID, courseID int64) (*models.Enrollment, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	if _, err := resolveCourse(ctx, s.catalog, courseID); err != nil {
		return nil, err
	}

	enrollment, err := s.store.CreateEnrollment(ctx, userID, courseID, s.now())
	if err != nil {
		return nil, err
	}

	logger.Info().Int64("userID", userID).Int64("courseID", courseID).Msg("User enrolled")
	return enrollment, nil
}

// UpdateProgress stores one module report and recomputes the enrollment's
// overall percentage with the configured policy.
func (s *enrollmentServiceImpl) UpdateProgress(ctx context.Context, userID, courseID, moduleID int64, percentage int) (*models.ProgressUpdate, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	if !models.ValidID(moduleID) {
		return nil, apperrors.ErrInvalidModule
	}
	if percentage < 0 || percentage > models.CompletePercentage {
		return nil, apperrors.ErrInvalidProgress
	}

	enrollment, err := s.store.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return nil, apperrors.ErrNotEnrolled
		}
		return nil, err
	}

	compute, err := s.progressFunc(ctx, courseID)
	if err != nil {
		return nil, err
	}

	module := &models.ModuleProgress{ModuleID: moduleID, Percentage: percentage}
	update, err := s.store.RecordProgress(ctx, enrollment.ID, module, s.now(), compute)
	if err != nil {
		return nil, err
	}

	s.afterUpdate(ctx, update)
	return update, nil
}

func (s *enrollmentServiceImpl) progressFunc(ctx context.Context, courseID int64) (models.ProgressFunc, error) {
	moduleCount := 0
	if s.policy.Name() == PolicyFraction {
		course, err := resolveCourse(ctx, s.catalog, courseID)
		if err != nil && !errors.Is(err, apperrors.ErrInvalidCourse) {
			return nil, err
		}
		if course != nil {
			moduleCount = course.ModuleCount
		}
	}
	return func(records []*models.ProgressRecord) int {
		return s.policy.Overall(records, moduleCount)
	}, nil
}

func (s *enrollmentServiceImpl) afterUpdate(ctx context.Context, update *models.ProgressUpdate) {
	if !update.JustCompleted {
		return
	}

	e := update.Enrollment
	logger.Info().Int64("enrollmentID", e.ID).Int64("userID", e.UserID).Int64("courseID", e.CourseID).Msg("Enrollment completed")

	s.mu.RLock()
	listeners := append([]CompletionListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, e)
	}
}

// GetProgress returns the overall percentage, 0 when the user is not enrolled.
func (s *enrollmentServiceImpl) GetProgress(ctx context.Context, userID, courseID int64) (int, error) {
	if err := validatePair(userID, courseID); err != nil {
		return 0, err
	}
	enrollment, err := s.store.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return enrollment.Progress, nil
}

// GetEnrollment returns the enrollment of a user in a course.
func (s *enrollmentServiceImpl) GetEnrollment(ctx context.Context, userID, courseID int64) (*models.Enrollment, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	enrollment, err := s.store.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
		return nil, apperrors.ErrNotEnrolled
	}
	return enrollment, err
}

// ListEnrollments returns all enrollments of a user.
func (s *enrollmentServiceImpl) ListEnrollments(ctx context.Context, userID int64) ([]*models.Enrollment, error) {
	if !models.ValidID(userID) {
		return nil, apperrors.ErrInvalidUser
	}
	return s.store.ListEnrollmentsByUser(ctx, userID)
}

// ListModuleProgress returns the module reports of a user's enrollment.
func (s *enrollmentServiceImpl) ListModuleProgress(ctx context.Context, userID, courseID int64) ([]*models.ProgressRecord, error) {
	enrollment, err := s.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return s.store.ListModuleProgress(ctx, enrollment.ID)
}

// DashboardSummary aggregates a user's enrollments.
func (s *enrollmentServiceImpl) DashboardSummary(ctx context.Context, userID int64) (*models.DashboardSummary, error) {
	if !models.ValidID(userID) {
		return nil, apperrors.ErrInvalidUser
	}
	return s.store.Summary(ctx, userID)
}

// PopularCourses ranks courses by enrollment count descending, breaking ties
// by course id ascending.
func (s *enrollmentServiceImpl) PopularCourses(ctx context.Context, limit int) ([]*models.CoursePopularity, error) {
	switch {
	case limit <= 0:
		limit = DefaultPopularLimit
	case limit > MaxPopularLimit:
		limit = MaxPopularLimit
	}
	return s.store.PopularCourses(ctx, limit)
}

// RecalculateProgress recomputes one enrollment from its stored module
// records, completing it if the records already amount to 100.
func (s *enrollmentServiceImpl) RecalculateProgress(ctx context.Context, enrollmentID int64) (*models.ProgressUpdate, error) {
	enrollment, err := s.store.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	compute, err := s.progressFunc(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	update, err := s.store.RecordProgress(ctx, enrollmentID, nil, s.now(), compute)
	if err != nil {
		return nil, err
	}

	s.afterUpdate(ctx, update)
	return update, nil
}

// RecalculateAll recomputes every enrollment and returns how many changed.
func (s *enrollmentServiceImpl) RecalculateAll(ctx context.Context) (int, error) {
	changed := 0
	var afterID int64
	for {
		ids, err := s.store.ListEnrollmentIDs(ctx, afterID, recalculateBatchSize)
		if err != nil {
			return changed, err
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return changed, err
			}
			before, err := s.store.GetEnrollmentByID(ctx, id)
			if err != nil {
				return changed, err
			}
			update, err := s.RecalculateProgress(ctx, id)
			if err != nil {
				return changed, err
			}
			if update.Enrollment.Progress != before.Progress || update.Enrollment.Status != before.Status {
				changed++
			}
		}
		afterID = ids[len(ids)-1]
	}

	logger.Info().Int("changed", changed).Msg("Progress recalculation finished")
	return changed, nil
}
