package repositories

import (
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	EnrollmentRepository  *EnrollmentRepository
	RatingRepository      *RatingRepository
	CertificateRepository *CertificateRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		EnrollmentRepository:  NewEnrollmentRepository(db),
		RatingRepository:      NewRatingRepository(db),
		CertificateRepository: NewCertificateRepository(db),
	}
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
