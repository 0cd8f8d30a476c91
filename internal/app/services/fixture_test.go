package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yigit/coursecred/internal/app/auth"
	"github.com/yigit/coursecred/internal/app/catalog"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/app/repositories/memory"
	"github.com/yigit/coursecred/internal/pkg/certid"
)

const (
	adminID  int64 = 1000
	courseGo int64 = 1
	courseDB int64 = 2
)

var baseTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fixture wires the services over the in-memory repositories, without caching.
type fixture struct {
	db          *memory.DB
	repos       *memory.Repositories
	catalog     *catalog.StaticCatalog
	enrollments EnrollmentService
	ratings     RatingService
	certs       CertificateService
	publisher   *fakePublisher
	clock       *testClock
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakePublisher struct {
	mu        sync.Mutex
	published int
	refs      map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, payload models.CertificatePayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published++
	if p.refs == nil {
		p.refs = map[string]bool{}
	}
	ref := "certificates/" + payload.CertificateID + ".pdf"
	p.refs[ref] = true
	return ref, nil
}

func (p *fakePublisher) Discard(ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refs, ref)
	return nil
}

func (p *fakePublisher) Available(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs[ref]
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy ProgressPolicy
	ids    certid.Source
}

func withPolicy(p ProgressPolicy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withIDs(src certid.Source) fixtureOption {
	return func(c *fixtureConfig) { c.ids = src }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := &fixtureConfig{policy: MaxPolicy{}}
	for _, o := range opts {
		o(cfg)
	}

	db := memory.NewDB()
	repos := memory.NewRepositories(db)
	cat := catalog.NewStaticCatalog(
		[]models.Course{
			{ID: courseGo, Title: "Practical Go", InstructorName: "Rob", ModuleCount: 4},
			{ID: courseDB, Title: "Relational Databases", InstructorName: "Edgar", ModuleCount: 2},
		},
		[]models.Learner{{ID: 7, DisplayName: "Ada Lovelace"}},
	)
	authorizer := auth.NewStaticAuthorizer([]int64{adminID})
	clock := &testClock{t: baseTime}
	publisher := &fakePublisher{}

	f := &fixture{
		db:        db,
		repos:     repos,
		catalog:   cat,
		publisher: publisher,
		clock:     clock,
	}

	es := NewEnrollmentService(repos.EnrollmentRepository, cat, cfg.policy)
	es.(*enrollmentServiceImpl).now = clock.Now
	f.enrollments = es

	rs := NewRatingService(repos.RatingRepository, cat, authorizer)
	rs.(*ratingServiceImpl).now = clock.Now
	f.ratings = rs

	cs := NewCertificateService(repos.CertificateRepository, repos.EnrollmentRepository, cat, authorizer, publisher, cfg.ids, CertificateConfig{
		SealSecret:       "test-seal",
		IDAttempts:       5,
		BatchConcurrency: 4,
	})
	cs.(*certificateServiceImpl).now = clock.Now
	f.certs = cs

	return f
}

// complete enrolls userID in courseID and reports the course finished.
func (f *fixture) complete(t *testing.T, userID, courseID int64) *models.Enrollment {
	t.Helper()
	ctx := context.Background()
	_, err := f.enrollments.Enroll(ctx, userID, courseID)
	require.NoError(t, err)
	var last *models.ProgressUpdate
	for module := int64(1); module <= 4; module++ {
		last, err = f.enrollments.UpdateProgress(ctx, userID, courseID, module, 100)
		require.NoError(t, err)
	}
	require.True(t, last.Enrollment.IsCompleted())
	return last.Enrollment
}
