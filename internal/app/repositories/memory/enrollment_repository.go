package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

// EnrollmentRepository is the in-memory enrollment ledger store.
type EnrollmentRepository struct {
	db *DB
}

// NewEnrollmentRepository creates an EnrollmentRepository over db.
func NewEnrollmentRepository(db *DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateEnrollment inserts an active enrollment unless the pair exists.
func (r *EnrollmentRepository) CreateEnrollment(_ context.Context, userID, courseID int64, at time.Time) (*models.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := pairKey{userID, courseID}
	if _, ok := r.db.enrollmentsByPair[key]; ok {
		return nil, apperrors.ErrAlreadyEnrolled
	}

	r.db.nextEnrollmentID++
	e := &models.Enrollment{
		ID:             r.db.nextEnrollmentID,
		UserID:         userID,
		CourseID:       courseID,
		Status:         models.EnrollmentActive,
		EnrolledAt:     at,
		LastActivityAt: at,
	}
	r.db.enrollments[e.ID] = e
	r.db.enrollmentsByPair[key] = e.ID
	return copyEnrollment(e), nil
}

// GetEnrollmentByID retrieves an enrollment by ID.
func (r *EnrollmentRepository) GetEnrollmentByID(_ context.Context, id int64) (*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	e, ok := r.db.enrollments[id]
	if !ok {
		return nil, apperrors.ErrEnrollmentNotFound
	}
	return copyEnrollment(e), nil
}

// GetEnrollment retrieves the enrollment of a user in a course.
func (r *EnrollmentRepository) GetEnrollment(_ context.Context, userID, courseID int64) (*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.enrollmentsByPair[pairKey{userID, courseID}]
	if !ok {
		return nil, apperrors.ErrEnrollmentNotFound
	}
	return copyEnrollment(r.db.enrollments[id]), nil
}

// ListEnrollmentsByUser returns a user's enrollments, newest first.
func (r *EnrollmentRepository) ListEnrollmentsByUser(_ context.Context, userID int64) ([]*models.Enrollment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*models.Enrollment{}
	for _, e := range r.db.enrollments {
		if e.UserID == userID {
			out = append(out, copyEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].EnrolledAt.After(out[j].EnrolledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ListEnrollmentIDs pages through enrollment ids in ascending order.
func (r *EnrollmentRepository) ListEnrollmentIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	ids := []int64{}
	for id := range r.db.enrollments {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ListModuleProgress returns the module records of an enrollment.
func (r *EnrollmentRepository) ListModuleProgress(_ context.Context, enrollmentID int64) ([]*models.ProgressRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.moduleProgressLocked(enrollmentID), nil
}

func (r *EnrollmentRepository) moduleProgressLocked(enrollmentID int64) []*models.ProgressRecord {
	records := []*models.ProgressRecord{}
	for key, p := range r.db.progress {
		if key.enrollmentID == enrollmentID {
			records = append(records, copyProgress(p))
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ModuleID < records[j].ModuleID })
	return records
}

// RecordProgress upserts a module record and applies the recomputed overall
// percentage under the write lock.
func (r *EnrollmentRepository) RecordProgress(_ context.Context, enrollmentID int64, module *models.ModuleProgress, at time.Time, compute models.ProgressFunc) (*models.ProgressUpdate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.enrollments[enrollmentID]
	if !ok {
		return nil, apperrors.ErrEnrollmentNotFound
	}

	if module != nil {
		key := moduleKey{enrollmentID, module.ModuleID}
		p, exists := r.db.progress[key]
		if !exists {
			r.db.nextProgressID++
			p = &models.ProgressRecord{ID: r.db.nextProgressID, EnrollmentID: enrollmentID, ModuleID: module.ModuleID}
			r.db.progress[key] = p
		}
		p.Percentage = module.Percentage
		p.UpdatedAt = at
		switch {
		case module.Percentage < models.CompletePercentage:
			p.CompletedAt = nil
		case p.CompletedAt == nil:
			completedAt := at
			p.CompletedAt = &completedAt
		}
		e.LastActivityAt = at
	}

	justCompleted := e.ApplyProgress(compute(r.moduleProgressLocked(enrollmentID)), at)
	return &models.ProgressUpdate{Enrollment: copyEnrollment(e), JustCompleted: justCompleted}, nil
}

// Summary aggregates a user's enrollments.
func (r *EnrollmentRepository) Summary(_ context.Context, userID int64) (*models.DashboardSummary, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s := &models.DashboardSummary{UserID: userID}
	for _, e := range r.db.enrollments {
		if e.UserID != userID {
			continue
		}
		s.TotalEnrollments++
		switch {
		case e.IsCompleted():
			s.Completed++
		case e.Progress < models.CompletePercentage:
			s.InProgress++
		}
	}
	return s, nil
}

// PopularCourses ranks courses by enrollment count, ties by course id.
func (r *EnrollmentRepository) PopularCourses(_ context.Context, limit int) ([]*models.CoursePopularity, error) {
	r.db.mu.RLock()
	counts := make(map[int64]int64)
	for _, e := range r.db.enrollments {
		counts[e.CourseID]++
	}
	r.db.mu.RUnlock()

	out := make([]*models.CoursePopularity, 0, len(counts))
	for courseID, n := range counts {
		out = append(out, &models.CoursePopularity{CourseID: courseID, EnrollmentCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnrollmentCount != out[j].EnrollmentCount {
			return out[i].EnrollmentCount > out[j].EnrollmentCount
		}
		return out[i].CourseID < out[j].CourseID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
