// Package memory implements the repository contracts in process memory. It
// enforces the same uniqueness rules as the PostgreSQL schema and backs the
// "memory" database driver and the service tests.
package memory

import (
	"sync"

	"github.com/yigit/coursecred/internal/app/models"
)

type pairKey struct {
	userID   int64
	courseID int64
}

type moduleKey struct {
	enrollmentID int64
	moduleID     int64
}

// DB is the shared in-memory state of all repositories.
type DB struct {
	mu sync.RWMutex

	enrollments       map[int64]*models.Enrollment
	enrollmentsByPair map[pairKey]int64
	progress          map[moduleKey]*models.ProgressRecord
	nextEnrollmentID  int64
	nextProgressID    int64

	ratings       map[int64]*models.Rating
	ratingsByPair map[pairKey]int64
	nextRatingID  int64

	certificates       map[int64]*models.Certificate
	certificatesByPair map[pairKey]int64
	certificatesByCode map[string]int64
	nextCertificateID  int64
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{
		enrollments:        make(map[int64]*models.Enrollment),
		enrollmentsByPair:  make(map[pairKey]int64),
		progress:           make(map[moduleKey]*models.ProgressRecord),
		ratings:            make(map[int64]*models.Rating),
		ratingsByPair:      make(map[pairKey]int64),
		certificates:       make(map[int64]*models.Certificate),
		certificatesByPair: make(map[pairKey]int64),
		certificatesByCode: make(map[string]int64),
	}
}

// Repositories mirrors repositories.Repositories for the memory driver.
type Repositories struct {
	EnrollmentRepository  *EnrollmentRepository
	RatingRepository      *RatingRepository
	CertificateRepository *CertificateRepository
}

// NewRepositories creates all repositories over one shared DB.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		EnrollmentRepository:  NewEnrollmentRepository(db),
		RatingRepository:      NewRatingRepository(db),
		CertificateRepository: NewCertificateRepository(db),
	}
}

func copyEnrollment(e *models.Enrollment) *models.Enrollment {
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyProgress(p *models.ProgressRecord) *models.ProgressRecord {
	c := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyRating(r *models.Rating) *models.Rating {
	c := *r
	return &c
}

func copyCertificate(cert *models.Certificate) *models.Certificate {
	c := *cert
	if cert.DocumentPath != nil {
		p := *cert.DocumentPath
		c.DocumentPath = &p
	}
	return &c
}
