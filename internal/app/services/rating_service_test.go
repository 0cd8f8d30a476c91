package services

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

func submitAll(t *testing.T, svc RatingService, courseID int64, values ...int) []*models.Rating {
	t.Helper()
	out := make([]*models.Rating, 0, len(values))
	for i, v := range values {
		r, err := svc.SubmitRating(context.Background(), int64(i+1), courseID, v, "")
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func TestRatings_AverageAndDistribution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	submitAll(t, f.ratings, courseGo, 5, 4, 5, 3, 4)

	avg, err := f.ratings.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 4.2, avg)

	dist, err := f.ratings.RatingDistribution(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, models.RatingDistribution{5: 2, 4: 2, 3: 1, 2: 0, 1: 0}, dist)

	summary, err := f.ratings.RatingSummary(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Count)
}

func TestRatings_NoRatingsIsZero(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	avg, err := f.ratings.AverageRating(context.Background(), courseDB)
	require.NoError(t, err)
	assert.Zero(t, avg)

	dist, err := f.ratings.RatingDistribution(context.Background(), courseDB)
	require.NoError(t, err)
	assert.Len(t, dist, 5)
	assert.Zero(t, dist.Total())
}

func TestSubmitRating_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   int64
		courseID int64
		value    int
		want     error
	}{
		{name: "zero rating", userID: 7, courseID: courseGo, value: 0, want: apperrors.ErrInvalidRating},
		{name: "six stars", userID: 7, courseID: courseGo, value: 6, want: apperrors.ErrInvalidRating},
		{name: "anonymous user", userID: 0, courseID: courseGo, value: 4, want: apperrors.ErrInvalidUser},
		{name: "bad course id", userID: 7, courseID: 0, value: 4, want: apperrors.ErrInvalidCourse},
		{name: "unknown course", userID: 7, courseID: 404, value: 4, want: apperrors.ErrInvalidCourse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ratings.SubmitRating(ctx, tt.userID, tt.courseID, tt.value, "text")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}

	page, err := f.ratings.ListRatings(ctx, courseGo, 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, page.TotalItems, "nothing stored for rejected input")

	_, err = f.ratings.SubmitRating(ctx, 7, courseGo, 3, strings.Repeat("a", MaxReviewLength+1))
	assert.ErrorIs(t, err, apperrors.ErrReviewTooLong)
}

func TestSubmitRating_ReviewLengthCountsVisibleCharacters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.ratings.SubmitRating(ctx, 7, courseGo, 4, strings.Repeat("&", MaxReviewLength))
	require.NoError(t, err, "escaping must not push a review over the limit")
	assert.Equal(t, strings.Repeat("&amp;", MaxReviewLength), r.Review)

	_, err = f.ratings.SubmitRating(ctx, 8, courseGo, 4, strings.Repeat("<", MaxReviewLength+1))
	assert.ErrorIs(t, err, apperrors.ErrReviewTooLong)
}

func TestSubmitRating_InvalidUTF8IsRepairedBeforeStorage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r, err := f.ratings.SubmitRating(context.Background(), 7, courseGo, 4, "great\xff\xfe course")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(r.Review))
}

func TestListRatings_HugePageIsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	submitAll(t, f.ratings, courseGo, 5, 4)

	page, err := f.ratings.ListRatings(context.Background(), courseGo, math.MaxInt, 10, models.SortNewest)
	require.NoError(t, err)
	assert.Empty(t, page.Ratings)
	assert.Equal(t, int64(2), page.TotalItems)
}

func TestSubmitRating_SanitizesReview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r, err := f.ratings.SubmitRating(context.Background(), 7, courseGo, 5, `<script>alert("x")</script>Great <b>course</b>`)
	require.NoError(t, err)
	assert.Equal(t, "Great course", r.Review)
	assert.NotContains(t, r.Review, "<")
}

func TestSubmitRating_ResubmissionUpdates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ratings.SubmitRating(ctx, 7, courseGo, 2, "meh")
	require.NoError(t, err)
	second, err := f.ratings.SubmitRating(ctx, 7, courseGo, 5, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Value)
	assert.Equal(t, "changed my mind", second.Review)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	page, err := f.ratings.ListRatings(ctx, courseGo, 1, 10, models.SortNewest)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalItems)

	mine, err := f.ratings.GetUserRating(ctx, 7, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 5, mine.Value)
}

func TestModerate_RejectedExcludedEverywhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ratings := submitAll(t, f.ratings, courseGo, 5, 1, 4)

	rejected, err := f.ratings.Moderate(ctx, adminID, ratings[1].ID, models.RatingRejected)
	require.NoError(t, err)
	assert.Equal(t, models.RatingRejected, rejected.Status)

	avg, err := f.ratings.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 4.5, avg)

	dist, err := f.ratings.RatingDistribution(ctx, courseGo)
	require.NoError(t, err)
	assert.Zero(t, dist[1])

	page, err := f.ratings.ListRatings(ctx, courseGo, 1, 10, models.SortLowest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalItems)
	for _, r := range page.Ratings {
		assert.NotEqual(t, ratings[1].ID, r.ID)
	}

	// Resubmitting does not lift a rejection
	_, err = f.ratings.SubmitRating(ctx, 2, courseGo, 3, "")
	require.NoError(t, err)
	avg, err = f.ratings.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 4.5, avg)

	_, err = f.ratings.Moderate(ctx, adminID, ratings[1].ID, models.RatingApproved)
	require.NoError(t, err)
	avg, err = f.ratings.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)
}

func TestModerate_Authorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ratings := submitAll(t, f.ratings, courseGo, 3)

	_, err := f.ratings.Moderate(ctx, 7, ratings[0].ID, models.RatingRejected)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.ratings.Moderate(ctx, 0, ratings[0].ID, models.RatingRejected)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.ratings.Moderate(ctx, adminID, ratings[0].ID, "hidden")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	_, err = f.ratings.Moderate(ctx, adminID, 999, models.RatingRejected)
	assert.ErrorIs(t, err, apperrors.ErrRatingNotFound)
}

func TestListRatings_PagingAndSorting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	submitAll(t, f.ratings, courseGo, 3, 5, 1, 4, 2)

	page, err := f.ratings.ListRatings(ctx, courseGo, 1, 2, models.SortHighest)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalItems)
	require.Len(t, page.Ratings, 2)
	assert.Equal(t, 5, page.Ratings[0].Value)
	assert.Equal(t, 4, page.Ratings[1].Value)

	page, err = f.ratings.ListRatings(ctx, courseGo, 3, 2, models.SortHighest)
	require.NoError(t, err)
	require.Len(t, page.Ratings, 1)
	assert.Equal(t, 1, page.Ratings[0].Value)

	page, err = f.ratings.ListRatings(ctx, courseGo, 1, 10, models.SortOldest)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Ratings[0].Value)

	page, err = f.ratings.ListRatings(ctx, courseGo, 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Ratings[0].Value, "default order is newest first")

	_, err = f.ratings.ListRatings(ctx, courseGo, 1, 10, "random")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSortOrder)
}

// mockRatingStore counts aggregate reads to observe caching.
type mockRatingStore struct {
	mock.Mock
	RatingStore
}

func (m *mockRatingStore) RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error) {
	args := m.Called(ctx, courseID)
	return args.Get(0).(models.RatingDistribution), args.Error(1)
}

func TestCachedRatingService_ServesFromCache(t *testing.T) {
	t.Parallel()
	store := &mockRatingStore{}
	dist := models.NewRatingDistribution()
	dist[4] = 2
	store.On("RatingDistribution", mock.Anything, courseGo).Return(dist, nil).Once()

	svc := NewCachedRatingService(NewRatingService(store, nil, nil), time.Minute)

	for i := 0; i < 3; i++ {
		avg, err := svc.AverageRating(context.Background(), courseGo)
		require.NoError(t, err)
		assert.Equal(t, 4.0, avg)
	}
	d, err := svc.RatingDistribution(context.Background(), courseGo)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d[4])

	store.AssertExpectations(t)
}

func TestCachedRatingService_InvalidatesOnWrites(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewCachedRatingService(f.ratings, time.Hour)
	ctx := context.Background()

	ratings := submitAll(t, svc, courseGo, 5, 3)
	avg, err := svc.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)

	_, err = svc.SubmitRating(ctx, 3, courseGo, 1, "")
	require.NoError(t, err)
	avg, err = svc.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 3.0, avg, "new submission is visible immediately")

	_, err = svc.Moderate(ctx, adminID, ratings[0].ID, models.RatingRejected)
	require.NoError(t, err)
	avg, err = svc.AverageRating(ctx, courseGo)
	require.NoError(t, err)
	assert.Equal(t, 2.0, avg, "moderation is visible immediately")

	// Callers mutating a returned summary do not corrupt the cache
	summary, err := svc.RatingSummary(ctx, courseGo)
	require.NoError(t, err)
	summary.Distribution[5] = 100
	again, err := svc.RatingSummary(ctx, courseGo)
	require.NoError(t, err)
	assert.Zero(t, again.Distribution[5])
}

func TestCachedRatingService_EntriesAlwaysExpire(t *testing.T) {
	t.Parallel()
	for _, ttl := range []time.Duration{0, -time.Second} {
		store := &mockRatingStore{}
		store.On("RatingDistribution", mock.Anything, courseGo).Return(models.NewRatingDistribution(), nil).Once()
		svc := NewCachedRatingService(NewRatingService(store, nil, nil), ttl)
		_, err := svc.RatingSummary(context.Background(), courseGo)
		require.NoError(t, err)

		items := svc.(*cachedRatingService).cache.Items()
		require.Len(t, items, 1)
		for _, item := range items {
			assert.NotZero(t, item.Expiration, "ttl %s", ttl)
		}
	}
}
