package services

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/now"
	"github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/catalog"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/certid"
	"github.com/yigit/coursecred/internal/pkg/helpers"
	"github.com/yigit/coursecred/internal/pkg/logger"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// Certificate issuance defaults
const (
	DefaultIDAttempts       = 5
	DefaultBatchConcurrency = 8
	topCertifiedCourses     = 10
)

// DocumentPublisher renders a certificate payload and stores the document.
type DocumentPublisher interface {
	Publish(ctx context.Context, payload models.CertificatePayload) (string, error)
	Available(ref string) bool
	Discard(ref string) error
}

// CertificateConfig tunes the certificate issuer.
type CertificateConfig struct {
	SealSecret       string
	IDAttempts       int
	BatchConcurrency int
}

// CertificateService is the certificate issuer.
type CertificateService interface {
	Generate(ctx context.Context, userID, courseID int64) (*models.Certificate, error)
	Verify(ctx context.Context, certificateID string) (*models.CertificateVerification, error)
	CanDownload(ctx context.Context, userID int64, certificateID string) (bool, error)
	Download(ctx context.Context, userID int64, certificateID string) (*models.Certificate, string, error)
	BatchGenerate(ctx context.Context, userIDs []int64, courseID int64) (*models.BatchResult, error)
	BackfillCompleted(ctx context.Context, limit int) (*models.BackfillResult, error)
	Statistics(ctx context.Context) (*models.CertificateStatistics, error)
	GetForUser(ctx context.Context, userID, courseID int64) (*models.Certificate, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.Certificate, error)
}

type certificateServiceImpl struct {
	store       CertificateStore
	enrollments EnrollmentStore
	catalog     catalog.Catalog
	authorizer  auth.Authorizer
	publisher   DocumentPublisher
	ids         certid.Source
	sealKey     [32]byte
	attempts    int
	concurrency int
	now         func() time.Time
}

// NewCertificateService creates a new certificate service. A nil ids source
// uses crypto/rand; a nil catalog renders placeholder names.
func NewCertificateService(
	store CertificateStore,
	enrollments EnrollmentStore,
	courses catalog.Catalog,
	authorizer auth.Authorizer,
	publisher DocumentPublisher,
	ids certid.Source,
	cfg CertificateConfig,
) CertificateService {
	if ids == nil {
		ids = certid.NewRandomSource()
	}
	if cfg.IDAttempts <= 0 {
		cfg.IDAttempts = DefaultIDAttempts
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	// blake2b keys are at most 64 bytes; hashing accepts any secret length
	sealKey := blake2b.Sum256([]byte(cfg.SealSecret))

	return &certificateServiceImpl{
		store:       store,
		enrollments: enrollments,
		catalog:     courses,
		authorizer:  authorizer,
		publisher:   publisher,
		ids:         ids,
		sealKey:     sealKey,
		attempts:    cfg.IDAttempts,
		concurrency: cfg.BatchConcurrency,
		now:         helpers.UTCNow,
	}
}

// AutoIssue returns a completion listener that issues the certificate of
// every newly completed enrollment. Failures are logged; the back-fill job
// picks up anything missed.
func AutoIssue(certificates CertificateService) CompletionListener {
	return func(ctx context.Context, e *models.Enrollment) {
		cert, err := certificates.Generate(ctx, e.UserID, e.CourseID)
		if err != nil {
			logger.Error().Err(err).Int64("userID", e.UserID).Int64("courseID", e.CourseID).Msg("Automatic certificate issuance failed")
			return
		}
		logger.Info().Str("certificateID", cert.CertificateID).Int64("userID", e.UserID).Int64("courseID", e.CourseID).Msg("Certificate issued on completion")
	}
}

// Generate returns the certificate of a completed enrollment, issuing it on
// first request. Repeated calls return the same certificate.
func (s *certificateServiceImpl) Generate(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetCertificate(ctx, userID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrCertificateNotFound) {
		return nil, err
	}

	enrollment, err := s.enrollments.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return nil, apperrors.ErrNotEnrolled
		}
		return nil, err
	}
	if !enrollment.IsCompleted() || enrollment.CompletedAt == nil {
		return nil, apperrors.ErrNotCompleted
	}

	return s.issue(ctx, userID, courseID, *enrollment.CompletedAt)
}

// issue mints a fresh identifier and stores the certificate, retrying on
// identifier collisions. Losing a race for the same pair returns the
// winner's certificate.
func (s *certificateServiceImpl) issue(ctx context.Context, userID, courseID int64, completedAt time.Time) (*models.Certificate, error) {
	payload, err := s.buildPayload(ctx, userID, courseID, completedAt)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.ids.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate id: %w", err)
		}
		if !certid.Valid(code) {
			return nil, fmt.Errorf("identifier source produced malformed id %q", code)
		}

		payload.CertificateID = code
		cert := &models.Certificate{
			CertificateID: code,
			UserID:        userID,
			CourseID:      courseID,
			IssuedAt:      s.now(),
			Payload:       payload,
		}
		cert.Seal, err = s.seal(cert)
		if err != nil {
			return nil, err
		}

		err = s.store.CreateCertificate(ctx, cert)
		switch {
		case err == nil:
			logger.Info().Str("certificateID", code).Int64("userID", userID).Int64("courseID", courseID).Msg("Certificate issued")
			return cert, nil
		case errors.Is(err, apperrors.ErrDuplicateCertificateID):
			logger.Warn().Int("attempt", attempt).Int64("userID", userID).Int64("courseID", courseID).Msg("Certificate id collision, retrying")
		case errors.Is(err, apperrors.ErrCertificateExists):
			return s.store.GetCertificate(ctx, userID, courseID)
		default:
			return nil, err
		}
	}

	logger.Error().Int("attempts", s.attempts).Int64("userID", userID).Int64("courseID", courseID).Msg("Certificate id collisions exhausted all attempts")
	return nil, apperrors.ErrDuplicateCertificateID
}

func (s *certificateServiceImpl) buildPayload(ctx context.Context, userID, courseID int64, completedAt time.Time) (models.CertificatePayload, error) {
	payload := models.CertificatePayload{
		UserName:       fmt.Sprintf("Learner #%d", userID),
		CourseTitle:    fmt.Sprintf("Course #%d", courseID),
		CompletionDate: completedAt.UTC().Truncate(time.Second),
	}
	if s.catalog == nil {
		return payload, nil
	}

	course, err := s.catalog.GetCourse(ctx, courseID)
	switch {
	case err == nil:
		payload.CourseTitle = course.Title
		payload.InstructorName = course.InstructorName
	case errors.Is(err, apperrors.ErrCourseNotFound):
		logger.Warn().Int64("courseID", courseID).Msg("Course missing from catalog, using placeholder title")
	default:
		return payload, fmt.Errorf("failed to resolve course %d: %w", courseID, err)
	}

	learner, err := s.catalog.GetLearner(ctx, userID)
	switch {
	case err == nil:
		if learner.DisplayName != "" {
			payload.UserName = learner.DisplayName
		}
	case errors.Is(err, apperrors.ErrUserNotFound):
		logger.Warn().Int64("userID", userID).Msg("Learner missing from directory, using placeholder name")
	default:
		return payload, fmt.Errorf("failed to resolve learner %d: %w", userID, err)
	}

	return payload, nil
}

type sealedContent struct {
	UserID   int64                     `json:"userId"`
	CourseID int64                     `json:"courseId"`
	Payload  models.CertificatePayload `json:"payload"`
}

// seal is a keyed BLAKE2b-256 over the certificate's owner and payload.
func (s *certificateServiceImpl) seal(cert *models.Certificate) (string, error) {
	content, err := json.Marshal(sealedContent{UserID: cert.UserID, CourseID: cert.CourseID, Payload: cert.Payload})
	if err != nil {
		return "", fmt.Errorf("failed to encode certificate payload: %w", err)
	}
	h, err := blake2b.New256(s.sealKey[:])
	if err != nil {
		return "", fmt.Errorf("failed to create seal hash: %w", err)
	}
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *certificateServiceImpl) sealIntact(cert *models.Certificate) bool {
	expected, err := s.seal(cert)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(cert.Seal)) == 1
}

// lookup resolves a public identifier to an untampered certificate. Malformed,
// unknown and tampered identifiers all yield ErrCertificateNotFound.
func (s *certificateServiceImpl) lookup(ctx context.Context, code string) (*models.Certificate, error) {
	if !certid.Valid(code) {
		return nil, apperrors.ErrCertificateNotFound
	}
	cert, err := s.store.GetCertificateByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !s.sealIntact(cert) {
		logger.Warn().Int64("id", cert.ID).Msg("Certificate seal mismatch")
		return nil, apperrors.ErrCertificateNotFound
	}
	return cert, nil
}

// Verify checks a public identifier. Every failure has the same shape: an
// invalid verification and ErrCertificateNotFound.
func (s *certificateServiceImpl) Verify(ctx context.Context, certificateID string) (*models.CertificateVerification, error) {
	cert, err := s.lookup(ctx, certificateID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCertificateNotFound) {
			return &models.CertificateVerification{Valid: false}, apperrors.ErrCertificateNotFound
		}
		return nil, err
	}
	payload := cert.Payload
	return &models.CertificateVerification{Valid: true, Payload: &payload}, nil
}

func (s *certificateServiceImpl) mayDownload(ctx context.Context, userID int64, cert *models.Certificate) bool {
	if !models.ValidID(userID) {
		return false
	}
	if cert.UserID == userID {
		return true
	}
	return s.authorizer != nil && s.authorizer.Can(ctx, userID, auth.ActionDownloadAnyCert)
}

// CanDownload reports whether userID owns the certificate or may download
// any certificate. Anonymous callers never may.
func (s *certificateServiceImpl) CanDownload(ctx context.Context, userID int64, certificateID string) (bool, error) {
	if !models.ValidID(userID) {
		return false, nil
	}
	cert, err := s.lookup(ctx, certificateID)
	if err != nil {
		return false, err
	}
	return s.mayDownload(ctx, userID, cert), nil
}

// Download authorizes the caller, renders the document on first download and
// counts the download. It returns the certificate and the document reference.
func (s *certificateServiceImpl) Download(ctx context.Context, userID int64, certificateID string) (*models.Certificate, string, error) {
	cert, err := s.lookup(ctx, certificateID)
	if err != nil {
		return nil, "", err
	}
	if !s.mayDownload(ctx, userID, cert) {
		return nil, "", apperrors.NewForbiddenError("you are not allowed to download this certificate")
	}
	if s.publisher == nil {
		return nil, "", fmt.Errorf("certificate documents are not configured")
	}

	ref := ""
	if cert.DocumentPath != nil {
		ref = *cert.DocumentPath
	}
	if !s.publisher.Available(ref) {
		ref, err = s.publishDocument(ctx, cert, ref)
		if err != nil {
			return nil, "", err
		}
		cert.DocumentPath = &ref
	}

	downloads, err := s.store.IncrementDownloads(ctx, cert.ID)
	if err != nil {
		return nil, "", err
	}
	cert.Downloads = downloads

	return cert, ref, nil
}

// publishDocument renders the certificate and records the new reference in
// place of previous. When a concurrent download recorded its own document
// first, the fresh copy is discarded and the stored one is returned.
func (s *certificateServiceImpl) publishDocument(ctx context.Context, cert *models.Certificate, previous string) (string, error) {
	published, err := s.publisher.Publish(ctx, cert.Payload)
	if err != nil {
		logger.Error().Err(err).Str("certificateID", cert.CertificateID).Msg("Error rendering certificate document")
		return "", err
	}

	stored, err := s.store.ClaimDocumentPath(ctx, cert.ID, previous, published)
	if err != nil {
		s.discardDocument(cert.CertificateID, published)
		return "", err
	}
	if stored != published {
		s.discardDocument(cert.CertificateID, published)
	}
	return stored, nil
}

func (s *certificateServiceImpl) discardDocument(certificateID, ref string) {
	if err := s.publisher.Discard(ref); err != nil {
		logger.Warn().Err(err).Str("certificateID", certificateID).Str("ref", ref).Msg("Failed to discard unused certificate document")
	}
}

// BatchGenerate issues certificates for many users of one course
// concurrently. Per-user failures are reported in the result; the error is
// reserved for an invalid course or a canceled context.
func (s *certificateServiceImpl) BatchGenerate(ctx context.Context, userIDs []int64, courseID int64) (*models.BatchResult, error) {
	if !models.ValidID(courseID) {
		return nil, apperrors.ErrInvalidCourse
	}

	result := &models.BatchResult{Issued: map[int64]string{}, Failed: map[int64]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	seen := make(map[int64]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		g.Go(func() error {
			cert, err := s.Generate(gctx, userID, courseID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[userID] = err.Error()
				return nil
			}
			result.Issued[userID] = cert.CertificateID
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	logger.Info().Int64("courseID", courseID).Int("issued", len(result.Issued)).Int("failed", len(result.Failed)).Msg("Batch certificate generation finished")
	return result, nil
}

// BackfillCompleted issues certificates for up to limit completed enrollments
// that never received one.
func (s *certificateServiceImpl) BackfillCompleted(ctx context.Context, limit int) (*models.BackfillResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: back-fill limit must be positive", apperrors.ErrValidationFailed)
	}

	pending, err := s.store.ListCompletedWithoutCertificate(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &models.BackfillResult{Scanned: len(pending)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range pending {
		g.Go(func() error {
			_, err := s.issue(gctx, p.UserID, p.CourseID, p.CompletedAt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				logger.Error().Err(err).Int64("userID", p.UserID).Int64("courseID", p.CourseID).Msg("Back-fill issuance failed")
				return nil
			}
			result.Issued++
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	logger.Info().Int("scanned", result.Scanned).Int("issued", result.Issued).Int("failed", result.Failed).Msg("Certificate back-fill finished")
	return result, nil
}

// Statistics reports totals, issuance in the current calendar month and the
// most certified courses.
func (s *certificateServiceImpl) Statistics(ctx context.Context) (*models.CertificateStatistics, error) {
	periodStart := now.With(s.now()).BeginningOfMonth()

	total, sinceStart, err := s.store.CountCertificates(ctx, periodStart)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopCertifiedCourses(ctx, topCertifiedCourses)
	if err != nil {
		return nil, err
	}

	return &models.CertificateStatistics{
		TotalIssued:      total,
		IssuedThisPeriod: sinceStart,
		PeriodStart:      periodStart,
		TopCourses:       top,
	}, nil
}

// GetForUser returns the user's certificate for a course.
func (s *certificateServiceImpl) GetForUser(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	if err := validatePair(userID, courseID); err != nil {
		return nil, err
	}
	return s.store.GetCertificate(ctx, userID, courseID)
}

// ListForUser returns all certificates of a user.
func (s *certificateServiceImpl) ListForUser(ctx context.Context, userID int64) ([]*models.Certificate, error) {
	if !models.ValidID(userID) {
		return nil, apperrors.ErrInvalidUser
	}
	return s.store.ListCertificatesByUser(ctx, userID)
}
