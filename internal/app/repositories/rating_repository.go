package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/dberrors"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

var ratingColumns = []string{
	"id", "user_id", "course_id", "rating", "review", "status", "created_at", "updated_at",
}

// ratingOrderBy maps a sort order to a deterministic ORDER BY clause
var ratingOrderBy = map[models.RatingSortOrder][]string{
	models.SortNewest:  {"created_at DESC", "id DESC"},
	models.SortOldest:  {"created_at ASC", "id ASC"},
	models.SortHighest: {"rating DESC", "created_at DESC", "id DESC"},
	models.SortLowest:  {"rating ASC", "created_at DESC", "id DESC"},
}

// RatingRepository handles rating database operations
type RatingRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewRatingRepository creates a new RatingRepository
func NewRatingRepository(db *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanRating(row pgx.Row) (*models.Rating, error) {
	r := &models.Rating{}
	var status string
	if err := row.Scan(&r.ID, &r.UserID, &r.CourseID, &r.Value, &r.Review, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RatingStatus(status)
	return r, nil
}

// UpsertRating inserts a rating or overwrites the existing one for the same
// user and course in a single statement.
func (r *RatingRepository) UpsertRating(ctx context.Context, rating *models.Rating) (*models.Rating, error) {
	status := rating.Status
	if status == "" {
		status = models.RatingApproved
	}

	sql, args, err := r.sb.Insert("ratings").
		Columns("user_id", "course_id", "rating", "review", "status", "created_at", "updated_at").
		Values(rating.UserID, rating.CourseID, rating.Value, rating.Review, string(status), rating.CreatedAt, rating.UpdatedAt).
		Suffix(`ON CONFLICT (user_id, course_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			review = EXCLUDED.review,
			updated_at = EXCLUDED.updated_at`).
		Suffix("RETURNING " + joinColumns(ratingColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert rating SQL")
		return nil, fmt.Errorf("failed to build upsert rating query: %w", err)
	}

	stored, err := scanRating(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsCheckViolation(err) {
			return nil, apperrors.ErrInvalidRating
		}
		logger.Error().Err(err).Int64("userID", rating.UserID).Int64("courseID", rating.CourseID).Msg("Error executing upsert rating query")
		return nil, fmt.Errorf("error upserting rating: %w", err)
	}
	return stored, nil
}

// GetRating retrieves a user's rating for a course regardless of status
func (r *RatingRepository) GetRating(ctx context.Context, userID, courseID int64) (*models.Rating, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "course_id": courseID})
}

func (r *RatingRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Rating, error) {
	sql, args, err := r.sb.Select(ratingColumns...).
		From("ratings").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get rating query: %w", err)
	}

	rating, err := scanRating(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRatingNotFound
		}
		logger.Error().Err(err).Interface("where", where).Msg("Error scanning rating row")
		return nil, fmt.Errorf("error getting rating: %w", err)
	}
	return rating, nil
}

// UpdateRatingStatus sets the moderation status of a rating
func (r *RatingRepository) UpdateRatingStatus(ctx context.Context, id int64, status models.RatingStatus, at time.Time) (*models.Rating, error) {
	sql, args, err := r.sb.Update("ratings").
		Set("status", string(status)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(ratingColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update rating status query: %w", err)
	}

	rating, err := scanRating(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRatingNotFound
		}
		logger.Error().Err(err).Int64("ratingID", id).Msg("Error executing update rating status query")
		return nil, fmt.Errorf("error updating rating status: %w", err)
	}
	return rating, nil
}

// RatingDistribution counts approved ratings per value
func (r *RatingRepository) RatingDistribution(ctx context.Context, courseID int64) (models.RatingDistribution, error) {
	sql, args, err := r.sb.Select("rating", "COUNT(*)").
		From("ratings").
		Where(squirrel.Eq{"course_id": courseID, "status": string(models.RatingApproved)}).
		GroupBy("rating").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rating distribution query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("courseID", courseID).Msg("Error executing rating distribution query")
		return nil, fmt.Errorf("error querying rating distribution: %w", err)
	}
	defer rows.Close()

	dist := models.NewRatingDistribution()
	for rows.Next() {
		var value int
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("error scanning rating distribution row: %w", err)
		}
		dist[value] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating distribution rows: %w", err)
	}
	return dist, nil
}

// ListRatings returns one page of approved ratings and the approved total
func (r *RatingRepository) ListRatings(ctx context.Context, courseID int64, order models.RatingSortOrder, offset uint64, limit int) ([]*models.Rating, int64, error) {
	where := squirrel.Eq{"course_id": courseID, "status": string(models.RatingApproved)}

	countSQL, countArgs, err := r.sb.Select("COUNT(*)").From("ratings").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count ratings query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Int64("courseID", courseID).Msg("Error executing count ratings query")
		return nil, 0, fmt.Errorf("error counting ratings: %w", err)
	}

	orderBy, ok := ratingOrderBy[order]
	if !ok {
		return nil, 0, apperrors.ErrInvalidSortOrder
	}

	sql, args, err := r.sb.Select(ratingColumns...).
		From("ratings").
		Where(where).
		OrderBy(orderBy...).
		Offset(offset).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list ratings query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("courseID", courseID).Msg("Error executing list ratings query")
		return nil, 0, fmt.Errorf("error querying ratings: %w", err)
	}
	defer rows.Close()

	ratings := []*models.Rating{}
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning rating row: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rating rows: %w", err)
	}
	return ratings, total, nil
}
