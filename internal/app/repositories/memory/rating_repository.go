package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

// RatingRepository is the in-memory rating store.
type RatingRepository struct {
	db *DB
}

// NewRatingRepository creates a RatingRepository over db.
func NewRatingRepository(db *DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// UpsertRating inserts a rating or overwrites value, review and updated time
// of the existing one.
func (r *RatingRepository) UpsertRating(_ context.Context, rating *models.Rating) (*models.Rating, error) {
	if rating.Value < models.MinRating || rating.Value > models.MaxRating {
		return nil, apperrors.ErrInvalidRating
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := pairKey{rating.UserID, rating.CourseID}
	if id, ok := r.db.ratingsByPair[key]; ok {
		existing := r.db.ratings[id]
		existing.Value = rating.Value
		existing.Review = rating.Review
		existing.UpdatedAt = rating.UpdatedAt
		return copyRating(existing), nil
	}

	r.db.nextRatingID++
	stored := copyRating(rating)
	stored.ID = r.db.nextRatingID
	if stored.Status == "" {
		stored.Status = models.RatingApproved
	}
	r.db.ratings[stored.ID] = stored
	r.db.ratingsByPair[key] = stored.ID
	return copyRating(stored), nil
}

// GetRating retrieves a user's rating for a course regardless of status.
func (r *RatingRepository) GetRating(_ context.Context, userID, courseID int64) (*models.Rating, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.ratingsByPair[pairKey{userID, courseID}]
	if !ok {
		return nil, apperrors.ErrRatingNotFound
	}
	return copyRating(r.db.ratings[id]), nil
}

// UpdateRatingStatus sets the moderation status of a rating.
func (r *RatingRepository) UpdateRatingStatus(_ context.Context, id int64, status models.RatingStatus, at time.Time) (*models.Rating, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rating, ok := r.db.ratings[id]
	if !ok {
		return nil, apperrors.ErrRatingNotFound
	}
	rating.Status = status
	rating.UpdatedAt = at
	return copyRating(rating), nil
}

// RatingDistribution counts approved ratings per value.
func (r *RatingRepository) RatingDistribution(_ context.Context, courseID int64) (models.RatingDistribution, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	dist := models.NewRatingDistribution()
	for _, rating := range r.db.ratings {
		if rating.CourseID == courseID && rating.Status == models.RatingApproved {
			dist[rating.Value]++
		}
	}
	return dist, nil
}

// ListRatings returns one page of approved ratings and the approved total.
func (r *RatingRepository) ListRatings(_ context.Context, courseID int64, order models.RatingSortOrder, offset uint64, limit int) ([]*models.Rating, int64, error) {
	less, ok := ratingLess[order]
	if !ok {
		return nil, 0, apperrors.ErrInvalidSortOrder
	}

	r.db.mu.RLock()
	approved := []*models.Rating{}
	for _, rating := range r.db.ratings {
		if rating.CourseID == courseID && rating.Status == models.RatingApproved {
			approved = append(approved, copyRating(rating))
		}
	}
	r.db.mu.RUnlock()

	sort.Slice(approved, func(i, j int) bool { return less(approved[i], approved[j]) })

	total := int64(len(approved))
	if offset >= uint64(len(approved)) {
		return []*models.Rating{}, total, nil
	}
	page := approved[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, total, nil
}

func newerFirst(a, b *models.Rating) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

var ratingLess = map[models.RatingSortOrder]func(a, b *models.Rating) bool{
	models.SortNewest: newerFirst,
	models.SortOldest: func(a, b *models.Rating) bool { return newerFirst(b, a) },
	models.SortHighest: func(a, b *models.Rating) bool {
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return newerFirst(a, b)
	},
	models.SortLowest: func(a, b *models.Rating) bool {
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return newerFirst(a, b)
	},
}
