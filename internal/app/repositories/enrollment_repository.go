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
	"github.com/yigit/coursecred/internal/db"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

var enrollmentColumns = []string{
	"id", "user_id", "course_id", "status", "progress", "enrolled_at", "completed_at", "last_activity_at",
}

var progressRecordColumns = []string{
	"id", "enrollment_id", "module_id", "percentage", "completed_at", "updated_at",
}

// EnrollmentRepository handles enrollment and module progress database operations
type EnrollmentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanEnrollment(row pgx.Row) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	var status string
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &status, &e.Progress, &e.EnrolledAt, &e.CompletedAt, &e.LastActivityAt)
	if err != nil {
		return nil, err
	}
	e.Status = models.EnrollmentStatus(status)
	return e, nil
}

func scanProgressRecord(row pgx.Row) (*models.ProgressRecord, error) {
	p := &models.ProgressRecord{}
	if err := row.Scan(&p.ID, &p.EnrollmentID, &p.ModuleID, &p.Percentage, &p.CompletedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateEnrollment inserts an active enrollment. The unique (user_id,
// course_id) constraint decides concurrent duplicates: the loser gets no row
// back and reports ErrAlreadyEnrolled.
func (r *EnrollmentRepository) CreateEnrollment(ctx context.Context, userID, courseID int64, at time.Time) (*models.Enrollment, error) {
	sql, args, err := r.sb.Insert("enrollments").
		Columns("user_id", "course_id", "status", "progress", "enrolled_at", "last_activity_at").
		Values(userID, courseID, string(models.EnrollmentActive), 0, at, at).
		Suffix("ON CONFLICT (user_id, course_id) DO NOTHING").
		Suffix("RETURNING " + joinColumns(enrollmentColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create enrollment SQL")
		return nil, fmt.Errorf("failed to build create enrollment query: %w", err)
	}

	e, err := scanEnrollment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAlreadyEnrolled
		}
		logger.Error().Err(err).Int64("userID", userID).Int64("courseID", courseID).Msg("Error executing create enrollment query")
		return nil, fmt.Errorf("error creating enrollment: %w", err)
	}
	return e, nil
}

// GetEnrollmentByID retrieves an enrollment by its ID
func (r *EnrollmentRepository) GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetEnrollment retrieves the enrollment of a user in a course
func (r *EnrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID int64) (*models.Enrollment, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "course_id": courseID})
}

func (r *EnrollmentRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Enrollment, error) {
	sql, args, err := r.sb.Select(enrollmentColumns...).
		From("enrollments").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get enrollment SQL")
		return nil, fmt.Errorf("failed to build get enrollment query: %w", err)
	}

	e, err := scanEnrollment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEnrollmentNotFound
		}
		logger.Error().Err(err).Interface("where", where).Msg("Error scanning enrollment row")
		return nil, fmt.Errorf("error getting enrollment: %w", err)
	}
	return e, nil
}

// ListEnrollmentsByUser returns a user's enrollments, newest first
func (r *EnrollmentRepository) ListEnrollmentsByUser(ctx context.Context, userID int64) ([]*models.Enrollment, error) {
	sql, args, err := r.sb.Select(enrollmentColumns...).
		From("enrollments").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("enrolled_at DESC", "id DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list enrollments SQL")
		return nil, fmt.Errorf("failed to build list enrollments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing list enrollments query")
		return nil, fmt.Errorf("error querying enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []*models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			logger.Error().Err(err).Int64("userID", userID).Msg("Error scanning enrollment row")
			return nil, fmt.Errorf("error scanning enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollment rows: %w", err)
	}
	return enrollments, nil
}

// ListEnrollmentIDs pages through enrollment ids in ascending order
func (r *EnrollmentRepository) ListEnrollmentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	sql, args, err := r.sb.Select("id").
		From("enrollments").
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list enrollment ids query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("afterID", afterID).Msg("Error executing list enrollment ids query")
		return nil, fmt.Errorf("error querying enrollment ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("error scanning enrollment ids: %w", err)
	}
	return ids, nil
}

// ListModuleProgress returns the module records of an enrollment
func (r *EnrollmentRepository) ListModuleProgress(ctx context.Context, enrollmentID int64) ([]*models.ProgressRecord, error) {
	return listModuleProgress(ctx, r.db, r.sb, enrollmentID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listModuleProgress(ctx context.Context, q querier, sb squirrel.StatementBuilderType, enrollmentID int64) ([]*models.ProgressRecord, error) {
	sql, args, err := sb.Select(progressRecordColumns...).
		From("progress_records").
		Where(squirrel.Eq{"enrollment_id": enrollmentID}).
		OrderBy("module_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list progress query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("enrollmentID", enrollmentID).Msg("Error executing list progress query")
		return nil, fmt.Errorf("error querying progress records: %w", err)
	}
	defer rows.Close()

	records := []*models.ProgressRecord{}
	for rows.Next() {
		p, err := scanProgressRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning progress record: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress records: %w", err)
	}
	return records, nil
}

// RecordProgress locks the enrollment row, upserts the module record,
// recomputes the overall percentage and stores it in one transaction.
func (r *EnrollmentRepository) RecordProgress(ctx context.Context, enrollmentID int64, module *models.ModuleProgress, at time.Time, compute models.ProgressFunc) (*models.ProgressUpdate, error) {
	var update *models.ProgressUpdate

	err := db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		sql, args, err := r.sb.Select(enrollmentColumns...).
			From("enrollments").
			Where(squirrel.Eq{"id": enrollmentID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build lock enrollment query: %w", err)
		}
		e, err := scanEnrollment(tx.QueryRow(ctx, sql, args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrEnrollmentNotFound
			}
			return fmt.Errorf("error locking enrollment: %w", err)
		}

		if module != nil {
			var completedAt *time.Time
			if module.Percentage >= models.CompletePercentage {
				completedAt = &at
			}
			sql, args, err = r.sb.Insert("progress_records").
				Columns("enrollment_id", "module_id", "percentage", "completed_at", "updated_at").
				Values(enrollmentID, module.ModuleID, module.Percentage, completedAt, at).
				Suffix(`ON CONFLICT (enrollment_id, module_id) DO UPDATE SET
					percentage = EXCLUDED.percentage,
					updated_at = EXCLUDED.updated_at,
					completed_at = CASE WHEN EXCLUDED.percentage >= 100
						THEN COALESCE(progress_records.completed_at, EXCLUDED.completed_at)
						ELSE NULL END`).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build upsert progress query: %w", err)
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("error upserting progress record: %w", err)
			}
			e.LastActivityAt = at
		}

		records, err := listModuleProgress(ctx, tx, r.sb, enrollmentID)
		if err != nil {
			return err
		}

		justCompleted := e.ApplyProgress(compute(records), at)

		sql, args, err = r.sb.Update("enrollments").
			SetMap(map[string]interface{}{
				"status":           string(e.Status),
				"progress":         e.Progress,
				"completed_at":     e.CompletedAt,
				"last_activity_at": e.LastActivityAt,
			}).
			Where(squirrel.Eq{"id": enrollmentID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update enrollment query: %w", err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("error updating enrollment progress: %w", err)
		}

		update = &models.ProgressUpdate{Enrollment: e, JustCompleted: justCompleted}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			logger.Error().Err(err).Int64("enrollmentID", enrollmentID).Msg("Error recording progress")
		}
		return nil, err
	}
	return update, nil
}

// Summary aggregates a user's enrollments
func (r *EnrollmentRepository) Summary(ctx context.Context, userID int64) (*models.DashboardSummary, error) {
	sql, args, err := r.sb.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE status = 'completed')",
		"COUNT(*) FILTER (WHERE status = 'active' AND progress < 100)",
	).
		From("enrollments").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard summary query: %w", err)
	}

	s := &models.DashboardSummary{UserID: userID}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.TotalEnrollments, &s.Completed, &s.InProgress); err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing dashboard summary query")
		return nil, fmt.Errorf("error getting dashboard summary: %w", err)
	}
	return s, nil
}

// PopularCourses ranks courses by enrollment count
func (r *EnrollmentRepository) PopularCourses(ctx context.Context, limit int) ([]*models.CoursePopularity, error) {
	sql, args, err := r.sb.Select("course_id", "COUNT(*) AS enrollment_count").
		From("enrollments").
		GroupBy("course_id").
		OrderBy("enrollment_count DESC", "course_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build popular courses query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing popular courses query")
		return nil, fmt.Errorf("error querying popular courses: %w", err)
	}
	defer rows.Close()

	courses := []*models.CoursePopularity{}
	for rows.Next() {
		c := &models.CoursePopularity{}
		if err := rows.Scan(&c.CourseID, &c.EnrollmentCount); err != nil {
			return nil, fmt.Errorf("error scanning popular course row: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating popular course rows: %w", err)
	}
	return courses, nil
}
