package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// cachedRatingService serves rating aggregates through a short-lived cache
// and drops a course's entry whenever one of its ratings is written or
// moderated.
type cachedRatingService struct {
	RatingService
	cache *cache.Cache
}

// DefaultRatingCacheTTL replaces a non-positive ttl.
const DefaultRatingCacheTTL = 30 * time.Second

// NewCachedRatingService wraps inner with a read-through aggregate cache
// whose entries live for ttl.
func NewCachedRatingService(inner RatingService, ttl time.Duration) RatingService {
	if ttl <= 0 {
		ttl = DefaultRatingCacheTTL
	}
	return &cachedRatingService{
		RatingService: inner,
		cache:         cache.New(ttl, 2*ttl),
	}
}

// SubmitRating implements RatingService.
func (s *cachedRatingService) SubmitRating(ctx context.Context, userID, courseID int64, value int, review string) (*models.Rating, error) {
	rating, err := s.RatingService.SubmitRating(ctx, userID, courseID, value, review)
	if err != nil {
		return nil, err
	}
	s.invalidate(courseID)
	return rating, nil
}

// Moderate implements RatingService.
func (s *cachedRatingService) Moderate(ctx context.Context, actorID, ratingID int64, status models.RatingStatus) (*models.Rating, error) {
	rating, err := s.RatingService.Moderate(ctx, actorID, ratingID, status)
	if err != nil {
		return nil, err
	}
	s.invalidate(rating.CourseID)
	return rating, nil
}

// RatingSummary implements RatingService.
func (s *cachedRatingService) RatingSummary(ctx context.Context, courseID int64) (*models.RatingSummary, error) {
	key := ratingCacheKey(courseID)
	if cached, ok := s.cache.Get(key); ok {
		return copySummary(cached.(*models.RatingSummary)), nil
	}

	summary, err := s.RatingService.RatingSummary(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, copySummary(summary))
	return summary, nil
}

// AverageRating implements RatingService.
func (s *cachedRatingService) AverageRating(ctx context.Context, courseID int64) (float64, error) {
	summary, err := s.RatingSummary(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return summary.Average, nil
}

// RatingDistribution implements RatingService.
func (s *cachedRatingService) RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error) {
	summary, err := s.RatingSummary(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return summary.Distribution, nil
}

func (s *cachedRatingService) invalidate(courseID int64) {
	s.cache.Delete(ratingCacheKey(courseID))
	logger.Debug().Int64("courseID", courseID).Msg("Rating cache invalidated")
}

func copySummary(in *models.RatingSummary) *models.RatingSummary {
	out := *in
	out.Distribution = make(models.RatingDistribution, len(in.Distribution))
	for k, v := range in.Distribution {
		out.Distribution[k] = v
	}
	return &out
}
