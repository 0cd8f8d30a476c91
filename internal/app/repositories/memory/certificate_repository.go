package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

// CertificateRepository is the in-memory certificate store.
type CertificateRepository struct {
	db *DB
}

// NewCertificateRepository creates a CertificateRepository over db.
func NewCertificateRepository(db *DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// CreateCertificate inserts a certificate, enforcing identifier and pair uniqueness.
func (r *CertificateRepository) CreateCertificate(_ context.Context, cert *models.Certificate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.certificatesByCode[cert.CertificateID]; ok {
		return apperrors.ErrDuplicateCertificateID
	}
	key := pairKey{cert.UserID, cert.CourseID}
	if _, ok := r.db.certificatesByPair[key]; ok {
		return apperrors.ErrCertificateExists
	}

	r.db.nextCertificateID++
	cert.ID = r.db.nextCertificateID
	r.db.certificates[cert.ID] = copyCertificate(cert)
	r.db.certificatesByPair[key] = cert.ID
	r.db.certificatesByCode[cert.CertificateID] = cert.ID
	return nil
}

// GetCertificate retrieves the certificate of a user for a course.
func (r *CertificateRepository) GetCertificate(_ context.Context, userID, courseID int64) (*models.Certificate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.certificatesByPair[pairKey{userID, courseID}]
	if !ok {
		return nil, apperrors.ErrCertificateNotFound
	}
	return copyCertificate(r.db.certificates[id]), nil
}

// GetCertificateByCode retrieves a certificate by its public identifier.
func (r *CertificateRepository) GetCertificateByCode(_ context.Context, certificateID string) (*models.Certificate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.certificatesByCode[certificateID]
	if !ok {
		return nil, apperrors.ErrCertificateNotFound
	}
	return copyCertificate(r.db.certificates[id]), nil
}

// ListCertificatesByUser returns a user's certificates, newest first.
func (r *CertificateRepository) ListCertificatesByUser(_ context.Context, userID int64) ([]*models.Certificate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*models.Certificate{}
	for _, cert := range r.db.certificates {
		if cert.UserID == userID {
			out = append(out, copyCertificate(cert))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ClaimDocumentPath records the rendered document reference unless another
// writer replaced previous first.
func (r *CertificateRepository) ClaimDocumentPath(_ context.Context, id int64, previous, path string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cert, ok := r.db.certificates[id]
	if !ok {
		return "", apperrors.ErrCertificateNotFound
	}
	current := ""
	if cert.DocumentPath != nil {
		current = *cert.DocumentPath
	}
	if current != previous {
		return current, nil
	}
	cert.DocumentPath = &path
	return path, nil
}

// IncrementDownloads bumps the download counter.
func (r *CertificateRepository) IncrementDownloads(_ context.Context, id int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cert, ok := r.db.certificates[id]
	if !ok {
		return 0, apperrors.ErrCertificateNotFound
	}
	cert.Downloads++
	return cert.Downloads, nil
}

// CountCertificates returns the total and the number issued at or after since.
func (r *CertificateRepository) CountCertificates(_ context.Context, since time.Time) (int64, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var total, sinceCount int64
	for _, cert := range r.db.certificates {
		total++
		if !cert.IssuedAt.Before(since) {
			sinceCount++
		}
	}
	return total, sinceCount, nil
}

// TopCertifiedCourses ranks courses by issued certificates, ties by course id.
func (r *CertificateRepository) TopCertifiedCourses(_ context.Context, limit int) ([]models.CourseCertificateCount, error) {
	r.db.mu.RLock()
	counts := make(map[int64]int64)
	for _, cert := range r.db.certificates {
		counts[cert.CourseID]++
	}
	r.db.mu.RUnlock()

	out := make([]models.CourseCertificateCount, 0, len(counts))
	for courseID, n := range counts {
		out = append(out, models.CourseCertificateCount{CourseID: courseID, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CourseID < out[j].CourseID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListCompletedWithoutCertificate finds completed enrollments lacking a
// certificate, oldest completion first.
func (r *CertificateRepository) ListCompletedWithoutCertificate(_ context.Context, limit int) ([]models.CompletedEnrollment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: back-fill limit must be positive", apperrors.ErrValidationFailed)
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	type row struct {
		id int64
		models.CompletedEnrollment
	}
	rows := []row{}
	for _, e := range r.db.enrollments {
		if !e.IsCompleted() || e.CompletedAt == nil {
			continue
		}
		if _, issued := r.db.certificatesByPair[pairKey{e.UserID, e.CourseID}]; issued {
			continue
		}
		rows = append(rows, row{id: e.ID, CompletedEnrollment: models.CompletedEnrollment{
			UserID: e.UserID, CourseID: e.CourseID, CompletedAt: *e.CompletedAt,
		}})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CompletedAt.Equal(rows[j].CompletedAt) {
			return rows[i].CompletedAt.Before(rows[j].CompletedAt)
		}
		return rows[i].id < rows[j].id
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]models.CompletedEnrollment, len(rows))
	for i, rw := range rows {
		out[i] = rw.CompletedEnrollment
	}
	return out, nil
}
