package models

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// CompletePercentage is the progress value at which an enrollment completes.
const CompletePercentage = 100

// Enrollment is the state record of one user's participation in one course.
type Enrollment struct {
	ID             int64            `json:"id" db:"id"`
	UserID         int64            `json:"userId" db:"user_id"`
	CourseID       int64            `json:"courseId" db:"course_id"`
	Status         EnrollmentStatus `json:"status" db:"status"`
	Progress       int              `json:"progress" db:"progress"`
	EnrolledAt     time.Time        `json:"enrolledAt" db:"enrolled_at"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty" db:"completed_at"` // Set once, on first reach of 100
	LastActivityAt time.Time        `json:"lastActivityAt" db:"last_activity_at"`
}

// IsCompleted reports whether the enrollment reached its terminal state.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentCompleted
}

// ProgressRecord is the completion percentage reported for one module of an enrollment.
type ProgressRecord struct {
	ID           int64      `json:"id" db:"id"`
	EnrollmentID int64      `json:"enrollmentId" db:"enrollment_id"`
	ModuleID     int64      `json:"moduleId" db:"module_id"`
	Percentage   int        `json:"percentage" db:"percentage"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// ProgressUpdate is the outcome of applying a recomputed overall percentage.
type ProgressUpdate struct {
	Enrollment *Enrollment
	// JustCompleted is true only for the update that moved the enrollment to completed.
	JustCompleted bool
}

// DashboardSummary aggregates one user's enrollments.
type DashboardSummary struct {
	UserID           int64 `json:"userId"`
	TotalEnrollments int   `json:"totalEnrollments"`
	Completed        int   `json:"completed"`
	InProgress       int   `json:"inProgress"`
}

// CoursePopularity is one row of the popular courses ranking.
type CoursePopularity struct {
	CourseID        int64 `json:"courseId" db:"course_id"`
	EnrollmentCount int64 `json:"enrollmentCount" db:"enrollment_count"`
}

// ModuleProgress is one module report passed to the ledger.
type ModuleProgress struct {
	ModuleID   int64
	Percentage int
}

// ProgressFunc computes an enrollment's overall percentage from its module records.
type ProgressFunc func(records []*ProgressRecord) int

// ApplyProgress moves the enrollment to overall percent at time at.
// A completed enrollment keeps 100 and its original completion time; the
// first overall value of 100 or more completes it. It reports whether this
// call performed the completion.
func (e *Enrollment) ApplyProgress(overall int, at time.Time) (justCompleted bool) {
	if e.IsCompleted() {
		e.Progress = CompletePercentage
		return false
	}
	if overall < 0 {
		overall = 0
	}
	if overall >= CompletePercentage {
		e.Progress = CompletePercentage
		e.Status = EnrollmentCompleted
		completedAt := at
		e.CompletedAt = &completedAt
		return true
	}
	e.Progress = overall
	return false
}
