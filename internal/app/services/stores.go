package services

import (
	"context"
	"time"

	"github.com/yigit/coursecred/internal/app/models"
)

// EnrollmentStore persists enrollments and module progress. Implementations
// enforce one enrollment per (user, course) and serialize RecordProgress per
// enrollment.
type EnrollmentStore interface {
	// CreateEnrollment returns apperrors.ErrAlreadyEnrolled when the pair exists.
	CreateEnrollment(ctx context.Context, userID, courseID int64, at time.Time) (*models.Enrollment, error)
	GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error)
	// GetEnrollment returns apperrors.ErrEnrollmentNotFound when absent.
	GetEnrollment(ctx context.Context, userID, courseID int64) (*models.Enrollment, error)
	ListEnrollmentsByUser(ctx context.Context, userID int64) ([]*models.Enrollment, error)
	ListEnrollmentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	ListModuleProgress(ctx context.Context, enrollmentID int64) ([]*models.ProgressRecord, error)
	// RecordProgress upserts module (when non-nil), recomputes the overall
	// percentage with compute and applies it, all atomically.
	RecordProgress(ctx context.Context, enrollmentID int64, module *models.ModuleProgress, at time.Time, compute models.ProgressFunc) (*models.ProgressUpdate, error)
	Summary(ctx context.Context, userID int64) (*models.DashboardSummary, error)
	// PopularCourses orders by enrollment count descending then course id ascending.
	PopularCourses(ctx context.Context, limit int) ([]*models.CoursePopularity, error)
}

// RatingStore persists ratings. Aggregation and listing only see approved ratings.
type RatingStore interface {
	// UpsertRating inserts or overwrites value, review and updated time of
	// the (user, course) rating. The moderation status of an existing rating
	// is left untouched.
	UpsertRating(ctx context.Context, rating *models.Rating) (*models.Rating, error)
	GetRating(ctx context.Context, userID, courseID int64) (*models.Rating, error)
	UpdateRatingStatus(ctx context.Context, id int64, status models.RatingStatus, at time.Time) (*models.Rating, error)
	RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error)
	ListRatings(ctx context.Context, courseID int64, order models.RatingSortOrder, offset uint64, limit int) ([]*models.Rating, int64, error)
}

// CertificateStore persists certificates.
type CertificateStore interface {
	// CreateCertificate returns apperrors.ErrDuplicateCertificateID when the
	// identifier is taken and apperrors.ErrCertificateExists when the
	// (user, course) pair already holds a certificate.
	CreateCertificate(ctx context.Context, cert *models.Certificate) error
	GetCertificate(ctx context.Context, userID, courseID int64) (*models.Certificate, error)
	GetCertificateByCode(ctx context.Context, certificateID string) (*models.Certificate, error)
	ListCertificatesByUser(ctx context.Context, userID int64) ([]*models.Certificate, error)
	// ClaimDocumentPath stores path as the certificate's document only while
	// the current reference is still previous ("" for none). It returns the
	// reference held afterwards, which is not path when another writer won.
	ClaimDocumentPath(ctx context.Context, id int64, previous, path string) (string, error)
	IncrementDownloads(ctx context.Context, id int64) (int64, error)
	CountCertificates(ctx context.Context, since time.Time) (total int64, sinceCount int64, err error)
	TopCertifiedCourses(ctx context.Context, limit int) ([]models.CourseCertificateCount, error)
	ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]models.CompletedEnrollment, error)
}
