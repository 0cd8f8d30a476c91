package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/catalog"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/helpers"
	"github.com/yigit/coursecred/internal/pkg/logger"
	"github.com/yigit/coursecred/internal/pkg/sanitize"
)

// MaxReviewLength is the longest accepted review, in visible characters after
// sanitizing.
const MaxReviewLength = 5000

// RatingService is the rating aggregator.
type RatingService interface {
	SubmitRating(ctx context.Context, userID, courseID int64, value int, review string) (*models.Rating, error)
	AverageRating(ctx context.Context, courseID int64) (float64, error)
	RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error)
	RatingSummary(ctx context.Context, courseID int64) (*models.RatingSummary, error)
	ListRatings(ctx context.Context, courseID int64, page, pageSize int, order models.RatingSortOrder) (*models.RatingPage, error)
	GetUserRating(ctx context.Context, userID, courseID int64) (*models.Rating, error)
	Moderate(ctx context.Context, actorID, ratingID int64, status models.RatingStatus) (*models.Rating, error)
}

type ratingServiceImpl struct {
	store      RatingStore
	catalog    catalog.Catalog
	authorizer auth.Authorizer
	now        func() time.Time
}

// NewRatingService creates a new rating service. A nil catalog skips course
// resolution.
func NewRatingService(store RatingStore, courses catalog.Catalog, authorizer auth.Authorizer) RatingService {
	return &ratingServiceImpl{
		store:      store,
		catalog:    courses,
		authorizer: authorizer,
		now:        helpers.UTCNow,
	}
}

// SubmitRating stores or overwrites the user's rating of a course. Input is
// fully validated before anything is written.
func (s *ratingServiceImpl) SubmitRating(ctx context.Context, userID, courseID int64, value int, review string) (*models.Rating, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	if value < models.MinRating || value > models.MaxRating {
		return nil, apperrors.ErrInvalidRating
	}

	clean := sanitize.Text(review)
	if sanitize.Length(clean) > MaxReviewLength {
		return nil, apperrors.ErrReviewTooLong
	}

	if _, err := resolveCourse(ctx, s.catalog, courseID); err != nil {
		return nil, err
	}

	now := s.now()
	rating, err := s.store.UpsertRating(ctx, &models.Rating{
		UserID:    userID,
		CourseID:  courseID,
		Value:     value,
		Review:    clean,
		Status:    models.RatingApproved,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Int64("userID", userID).Int64("courseID", courseID).Int("rating", value).Msg("Rating submitted")
	return rating, nil
}

// AverageRating is the mean of approved ratings rounded to one decimal, 0
// when there are none.
func (s *ratingServiceImpl) AverageRating(ctx context.Context, courseID int64) (float64, error) {
	summary, err := s.RatingSummary(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return summary.Average, nil
}

// RatingDistribution counts approved ratings per star value.
func (s *ratingServiceImpl) RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error) {
	if !models.ValidID(courseID) {
		return nil, apperrors.ErrInvalidCourse
	}
	return s.store.RatingDistribution(ctx, courseID)
}

// RatingSummary returns average, count and distribution of approved ratings.
func (s *ratingServiceImpl) RatingSummary(ctx context.Context, courseID int64) (*models.RatingSummary, error) {
	dist, err := s.RatingDistribution(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return summarize(courseID, dist), nil
}

func summarize(courseID int64, dist models.RatingDistribution) *models.RatingSummary {
	count := dist.Total()
	summary := &models.RatingSummary{CourseID: courseID, Count: count, Distribution: dist}
	if count == 0 {
		return summary
	}
	var sum int64
	for value, n := range dist {
		sum += int64(value) * n
	}
	summary.Average = helpers.RoundTo(float64(sum)/float64(count), 1)
	return summary
}

// ListRatings returns one page of approved ratings. An empty order means newest first.
func (s *ratingServiceImpl) ListRatings(ctx context.Context, courseID int64, page, pageSize int, order models.RatingSortOrder) (*models.RatingPage, error) {
	if !models.ValidID(courseID) {
		return nil, apperrors.ErrInvalidCourse
	}
	if order == "" {
		order = models.SortNewest
	}
	if !order.Valid() {
		return nil, apperrors.ErrInvalidSortOrder
	}

	page, pageSize = helpers.NormalizePage(page, pageSize)
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)

	ratings, total, err := s.store.ListRatings(ctx, courseID, order, offset, limit)
	if err != nil {
		return nil, err
	}
	return &models.RatingPage{Ratings: ratings, TotalItems: total, Page: page, PageSize: pageSize}, nil
}

// GetUserRating returns the user's own rating of a course, whatever its status.
func (s *ratingServiceImpl) GetUserRating(ctx context.Context, userID, courseID int64) (*models.Rating, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	return s.store.GetRating(ctx, userID, courseID)
}

// Moderate changes a rating's status. Only actors granted
// auth.ActionModerateRatings may call it.
func (s *ratingServiceImpl) Moderate(ctx context.Context, actorID, ratingID int64, status models.RatingStatus) (*models.Rating, error) {
	if s.authorizer == nil || !s.authorizer.Can(ctx, actorID, auth.ActionModerateRatings) {
		return nil, apperrors.NewForbiddenError("only administrators can moderate ratings")
	}
	if !status.Valid() {
		return nil, apperrors.ErrInvalidStatus
	}
	if !models.ValidID(ratingID) {
		return nil, apperrors.ErrRatingNotFound
	}

	rating, err := s.store.UpdateRatingStatus(ctx, ratingID, status, s.now())
	if err != nil {
		return nil, err
	}

	logger.Info().Int64("ratingID", ratingID).Int64("actorID", actorID).Str("status", string(status)).Msg("Rating moderated")
	return rating, nil
}

// ratingCacheKey is the cache key of a course's rating summary.
func ratingCacheKey(courseID int64) string {
	return fmt.Sprintf("rating-summary:%d", courseID)
}
