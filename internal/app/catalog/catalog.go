// Package catalog provides the read-only course catalog and learner directory
// the engine consults for identifiers and display metadata.
package catalog

import (
	"context"

	"github.com/yigit/coursecred/internal/app/models"
)

// Catalog resolves course and learner identifiers.
//
// GetCourse returns apperrors.ErrCourseNotFound for unknown courses and
// GetLearner returns apperrors.ErrUserNotFound for unknown learners.
type Catalog interface {
	GetCourse(ctx context.Context, courseID int64) (*models.Course, error)
	GetLearner(ctx context.Context, userID int64) (*models.Learner, error)
}
