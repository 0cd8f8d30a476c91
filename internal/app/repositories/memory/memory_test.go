package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

var t0 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func maxOf(records []*models.ProgressRecord) int {
	best := 0
	for _, r := range records {
		if r.Percentage > best {
			best = r.Percentage
		}
	}
	return best
}

func TestEnrollmentRepository_ConcurrentCreate(t *testing.T) {
	t.Parallel()
	repo := NewEnrollmentRepository(NewDB())

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dupes := 0, 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateEnrollment(context.Background(), 1, 2, t0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled) {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 31, dupes)
	list, err := repo.ListEnrollmentsByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnrollmentRepository_RecordProgress(t *testing.T) {
	t.Parallel()
	repo := NewEnrollmentRepository(NewDB())
	ctx := context.Background()
	e, err := repo.CreateEnrollment(ctx, 1, 2, t0)
	require.NoError(t, err)

	up, err := repo.RecordProgress(ctx, e.ID, &models.ModuleProgress{ModuleID: 3, Percentage: 100}, t0.Add(time.Minute), maxOf)
	require.NoError(t, err)
	assert.True(t, up.JustCompleted)

	records, err := repo.ListModuleProgress(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].CompletedAt)

	up, err = repo.RecordProgress(ctx, e.ID, &models.ModuleProgress{ModuleID: 3, Percentage: 60}, t0.Add(2*time.Minute), maxOf)
	require.NoError(t, err)
	assert.False(t, up.JustCompleted)
	assert.Equal(t, 100, up.Enrollment.Progress)

	records, err = repo.ListModuleProgress(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, records[0].Percentage)
	assert.Nil(t, records[0].CompletedAt)

	_, err = repo.RecordProgress(ctx, 999, nil, t0, maxOf)
	assert.ErrorIs(t, err, apperrors.ErrEnrollmentNotFound)
}

func TestEnrollmentRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()
	repo := NewEnrollmentRepository(NewDB())
	e, err := repo.CreateEnrollment(context.Background(), 1, 2, t0)
	require.NoError(t, err)

	e.Progress = 77

	stored, err := repo.GetEnrollmentByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Progress)
}

func TestRatingRepository_UpsertKeepsStatus(t *testing.T) {
	t.Parallel()
	repo := NewRatingRepository(NewDB())
	ctx := context.Background()

	first, err := repo.UpsertRating(ctx, &models.Rating{UserID: 1, CourseID: 2, Value: 4, CreatedAt: t0, UpdatedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, models.RatingApproved, first.Status)

	_, err = repo.UpdateRatingStatus(ctx, first.ID, models.RatingRejected, t0)
	require.NoError(t, err)

	second, err := repo.UpsertRating(ctx, &models.Rating{UserID: 1, CourseID: 2, Value: 2, Review: "meh", CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Value)
	assert.Equal(t, models.RatingRejected, second.Status)
	assert.Equal(t, t0, second.CreatedAt)

	_, err = repo.UpsertRating(ctx, &models.Rating{UserID: 1, CourseID: 3, Value: 6})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)
}

func TestRatingRepository_ListOrders(t *testing.T) {
	t.Parallel()
	repo := NewRatingRepository(NewDB())
	ctx := context.Background()
	for i, v := range []int{3, 5, 1} {
		at := t0.Add(time.Duration(i) * time.Hour)
		_, err := repo.UpsertRating(ctx, &models.Rating{UserID: int64(i + 1), CourseID: 9, Value: v, CreatedAt: at, UpdatedAt: at})
		require.NoError(t, err)
	}

	values := func(order models.RatingSortOrder) []int {
		page, total, err := repo.ListRatings(ctx, 9, order, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		out := []int{}
		for _, r := range page {
			out = append(out, r.Value)
		}
		return out
	}

	assert.Equal(t, []int{1, 5, 3}, values(models.SortNewest))
	assert.Equal(t, []int{3, 5, 1}, values(models.SortOldest))
	assert.Equal(t, []int{5, 3, 1}, values(models.SortHighest))
	assert.Equal(t, []int{1, 3, 5}, values(models.SortLowest))

	page, total, err := repo.ListRatings(ctx, 9, models.SortNewest, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, int64(3), total)

	_, _, err = repo.ListRatings(ctx, 9, "random", 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSortOrder)
}

func TestCertificateRepository_Uniqueness(t *testing.T) {
	t.Parallel()
	repo := NewCertificateRepository(NewDB())
	ctx := context.Background()

	require.NoError(t, repo.CreateCertificate(ctx, &models.Certificate{CertificateID: "AAAAAAAAAAAA", UserID: 1, CourseID: 1, IssuedAt: t0}))

	err := repo.CreateCertificate(ctx, &models.Certificate{CertificateID: "AAAAAAAAAAAA", UserID: 2, CourseID: 1, IssuedAt: t0})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCertificateID)

	err = repo.CreateCertificate(ctx, &models.Certificate{CertificateID: "BBBBBBBBBBBB", UserID: 1, CourseID: 1, IssuedAt: t0})
	assert.ErrorIs(t, err, apperrors.ErrCertificateExists)

	n, err := repo.IncrementDownloads(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCertificateRepository_CompletedWithoutCertificate(t *testing.T) {
	t.Parallel()
	db := NewDB()
	enrollments := NewEnrollmentRepository(db)
	certs := NewCertificateRepository(db)
	ctx := context.Background()

	complete := func(userID int64, at time.Time) {
		e, err := enrollments.CreateEnrollment(ctx, userID, 7, t0)
		require.NoError(t, err)
		_, err = enrollments.RecordProgress(ctx, e.ID, &models.ModuleProgress{ModuleID: 1, Percentage: 100}, at, maxOf)
		require.NoError(t, err)
	}
	complete(1, t0.Add(2*time.Hour))
	complete(2, t0.Add(time.Hour))
	complete(3, t0.Add(3*time.Hour))
	_, err := enrollments.CreateEnrollment(ctx, 4, 7, t0)
	require.NoError(t, err)
	require.NoError(t, certs.CreateCertificate(ctx, &models.Certificate{CertificateID: "CCCCCCCCCCCC", UserID: 3, CourseID: 7, IssuedAt: t0}))

	pending, err := certs.ListCompletedWithoutCertificate(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].UserID)
	assert.Equal(t, int64(1), pending[1].UserID)
}

func TestCertificateRepository_CompletedWithoutCertificateLimit(t *testing.T) {
	t.Parallel()
	db := NewDB()
	enrollments := NewEnrollmentRepository(db)
	certs := NewCertificateRepository(db)
	ctx := context.Background()

	for userID := int64(1); userID <= 3; userID++ {
		e, err := enrollments.CreateEnrollment(ctx, userID, 7, t0)
		require.NoError(t, err)
		_, err = enrollments.RecordProgress(ctx, e.ID, &models.ModuleProgress{ModuleID: 1, Percentage: 100}, t0.Add(time.Duration(userID)*time.Hour), maxOf)
		require.NoError(t, err)
	}

	pending, err := certs.ListCompletedWithoutCertificate(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	for _, limit := range []int{0, -1} {
		_, err = certs.ListCompletedWithoutCertificate(ctx, limit)
		assert.ErrorIs(t, err, apperrors.ErrValidationFailed, "limit %d", limit)
	}
}

func TestCertificateRepository_ClaimDocumentPath(t *testing.T) {
	t.Parallel()
	certs := NewCertificateRepository(NewDB())
	ctx := context.Background()
	cert := &models.Certificate{CertificateID: "DDDDDDDDDDDD", UserID: 1, CourseID: 7, IssuedAt: t0}
	require.NoError(t, certs.CreateCertificate(ctx, cert))

	stored, err := certs.ClaimDocumentPath(ctx, cert.ID, "", "certificates/first.pdf")
	require.NoError(t, err)
	assert.Equal(t, "certificates/first.pdf", stored)

	// A second writer that also saw no document loses.
	stored, err = certs.ClaimDocumentPath(ctx, cert.ID, "", "certificates/second.pdf")
	require.NoError(t, err)
	assert.Equal(t, "certificates/first.pdf", stored)

	// Replacing a known reference succeeds.
	stored, err = certs.ClaimDocumentPath(ctx, cert.ID, "certificates/first.pdf", "certificates/third.pdf")
	require.NoError(t, err)
	assert.Equal(t, "certificates/third.pdf", stored)

	_, err = certs.ClaimDocumentPath(ctx, 999, "", "certificates/x.pdf")
	assert.ErrorIs(t, err, apperrors.ErrCertificateNotFound)
}
