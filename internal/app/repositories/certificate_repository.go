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

const (
	certificateIDConstraint         = "certificates_certificate_id_key"
	certificateUserCourseConstraint = "certificates_user_course_key"
)

var certificateColumns = []string{
	"id", "certificate_id", "user_id", "course_id", "issued_at", "payload", "seal", "document_path", "download_count",
}

// CertificateRepository handles certificate database operations
type CertificateRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCertificateRepository creates a new CertificateRepository
func NewCertificateRepository(db *pgxpool.Pool) *CertificateRepository {
	return &CertificateRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanCertificate(row pgx.Row) (*models.Certificate, error) {
	c := &models.Certificate{}
	err := row.Scan(&c.ID, &c.CertificateID, &c.UserID, &c.CourseID, &c.IssuedAt, &c.Payload, &c.Seal, &c.DocumentPath, &c.Downloads)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCertificate inserts an issued certificate and sets its ID
func (r *CertificateRepository) CreateCertificate(ctx context.Context, cert *models.Certificate) error {
	sql, args, err := r.sb.Insert("certificates").
		Columns("certificate_id", "user_id", "course_id", "issued_at", "payload", "seal").
		Values(cert.CertificateID, cert.UserID, cert.CourseID, cert.IssuedAt, cert.Payload, cert.Seal).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create certificate SQL")
		return fmt.Errorf("failed to build create certificate query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&cert.ID); err != nil {
		switch {
		case dberrors.IsDuplicateConstraintError(err, certificateIDConstraint):
			return apperrors.ErrDuplicateCertificateID
		case dberrors.IsDuplicateConstraintError(err, certificateUserCourseConstraint):
			return apperrors.ErrCertificateExists
		}
		logger.Error().Err(err).Int64("userID", cert.UserID).Int64("courseID", cert.CourseID).Msg("Error executing create certificate query")
		return fmt.Errorf("error creating certificate: %w", err)
	}
	return nil
}

// GetCertificate retrieves the certificate of a user for a course
func (r *CertificateRepository) GetCertificate(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "course_id": courseID})
}

// GetCertificateByCode retrieves a certificate by its public identifier
func (r *CertificateRepository) GetCertificateByCode(ctx context.Context, certificateID string) (*models.Certificate, error) {
	return r.getOne(ctx, squirrel.Eq{"certificate_id": certificateID})
}

func (r *CertificateRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Certificate, error) {
	sql, args, err := r.sb.Select(certificateColumns...).
		From("certificates").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get certificate query: %w", err)
	}

	cert, err := scanCertificate(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCertificateNotFound
		}
		logger.Error().Err(err).Msg("Error scanning certificate row")
		return nil, fmt.Errorf("error getting certificate: %w", err)
	}
	return cert, nil
}

// ListCertificatesByUser returns a user's certificates, newest first
func (r *CertificateRepository) ListCertificatesByUser(ctx context.Context, userID int64) ([]*models.Certificate, error) {
	sql, args, err := r.sb.Select(certificateColumns...).
		From("certificates").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("issued_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list certificates query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing list certificates query")
		return nil, fmt.Errorf("error querying certificates: %w", err)
	}
	defer rows.Close()

	certs := []*models.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning certificate row: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating certificate rows: %w", err)
	}
	return certs, nil
}

// ClaimDocumentPath records the rendered document reference unless another
// writer replaced previous first, and returns the reference now stored
func (r *CertificateRepository) ClaimDocumentPath(ctx context.Context, id int64, previous, path string) (string, error) {
	current := squirrel.Eq{"document_path": nil}
	if previous != "" {
		current = squirrel.Eq{"document_path": previous}
	}
	sql, args, err := r.sb.Update("certificates").
		Set("document_path", path).
		Where(squirrel.Eq{"id": id}).
		Where(current).
		Suffix("RETURNING document_path").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build claim document path query: %w", err)
	}

	var stored string
	err = r.db.QueryRow(ctx, sql, args...).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		logger.Error().Err(err).Int64("certificateID", id).Msg("Error executing claim document path query")
		return "", fmt.Errorf("error setting document path: %w", err)
	}

	// Lost the race or the row is gone; report what is stored now.
	sql, args, err = r.sb.Select("COALESCE(document_path, '')").
		From("certificates").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build get document path query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrCertificateNotFound
		}
		logger.Error().Err(err).Int64("certificateID", id).Msg("Error reading document path")
		return "", fmt.Errorf("error reading document path: %w", err)
	}
	return stored, nil
}

// IncrementDownloads bumps the download counter and returns its new value
func (r *CertificateRepository) IncrementDownloads(ctx context.Context, id int64) (int64, error) {
	sql, args, err := r.sb.Update("certificates").
		Set("download_count", squirrel.Expr("download_count + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING download_count").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build increment downloads query: %w", err)
	}

	var downloads int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&downloads); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrCertificateNotFound
		}
		logger.Error().Err(err).Int64("certificateID", id).Msg("Error executing increment downloads query")
		return 0, fmt.Errorf("error incrementing downloads: %w", err)
	}
	return downloads, nil
}

// CountCertificates returns the total number of certificates and the number
// issued at or after since
func (r *CertificateRepository) CountCertificates(ctx context.Context, since time.Time) (int64, int64, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		Column(squirrel.Expr("COUNT(*) FILTER (WHERE issued_at >= ?)", since)).
		From("certificates").
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build count certificates query: %w", err)
	}

	var total, sinceCount int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total, &sinceCount); err != nil {
		logger.Error().Err(err).Msg("Error executing count certificates query")
		return 0, 0, fmt.Errorf("error counting certificates: %w", err)
	}
	return total, sinceCount, nil
}

// TopCertifiedCourses ranks courses by issued certificates
func (r *CertificateRepository) TopCertifiedCourses(ctx context.Context, limit int) ([]models.CourseCertificateCount, error) {
	sql, args, err := r.sb.Select("course_id", "COUNT(*) AS issued").
		From("certificates").
		GroupBy("course_id").
		OrderBy("issued DESC", "course_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build top certified courses query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing top certified courses query")
		return nil, fmt.Errorf("error querying top certified courses: %w", err)
	}
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.CourseCertificateCount])
	if err != nil {
		return nil, fmt.Errorf("error scanning top certified courses: %w", err)
	}
	return counts, nil
}

// ListCompletedWithoutCertificate finds completed enrollments that were never
// issued a certificate, oldest completion first
func (r *CertificateRepository) ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]models.CompletedEnrollment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: back-fill limit must be positive", apperrors.ErrValidationFailed)
	}
	sql, args, err := r.sb.Select("e.user_id", "e.course_id", "e.completed_at").
		From("enrollments e").
		LeftJoin("certificates c ON c.user_id = e.user_id AND c.course_id = e.course_id").
		Where(squirrel.Eq{"e.status": string(models.EnrollmentCompleted), "c.id": nil}).
		OrderBy("e.completed_at ASC", "e.id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build completed enrollments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing completed enrollments query")
		return nil, fmt.Errorf("error querying completed enrollments: %w", err)
	}
	completed, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.CompletedEnrollment])
	if err != nil {
		return nil, fmt.Errorf("error scanning completed enrollments: %w", err)
	}
	return completed, nil
}
