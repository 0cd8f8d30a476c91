package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
)

func TestStaticCatalog(t *testing.T) {
	t.Parallel()
	c := NewStaticCatalog(
		[]models.Course{{ID: 1, Title: "Go", InstructorName: "Rob", ModuleCount: 4}},
		[]models.Learner{{ID: 7, DisplayName: "Ada"}},
	)

	course, err := c.GetCourse(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Go", course.Title)

	learner, err := c.GetLearner(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", learner.DisplayName)

	_, err = c.GetCourse(context.Background(), 2)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = c.GetLearner(context.Background(), 8)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestLoadStaticCatalog(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
courses:
  - id: 10
    title: Databases
    instructor_name: Grace
    module_count: 3
learners:
  - id: 3
    display_name: Linus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadStaticCatalog(path)
	require.NoError(t, err)

	course, err := c.GetCourse(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.Course{ID: 10, Title: "Databases", InstructorName: "Grace", ModuleCount: 3}, *course)

	learner, err := c.GetLearner(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Linus", learner.DisplayName)
}

func TestLoadStaticCatalog_InvalidID(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("courses:\n  - id: 0\n    title: broken\n"), 0o600))

	_, err := LoadStaticCatalog(path)
	assert.Error(t, err)
}

func TestHTTPCatalog(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/courses/5":
			_, _ = w.Write([]byte(`{"id":5,"title":"Compilers","instructorName":"Niklaus","moduleCount":6}`))
		case "/learners/9":
			_, _ = w.Write([]byte(`{"displayName":"Barbara"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPCatalog(HTTPConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})

	course, err := c.GetCourse(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Compilers", course.Title)
	assert.Equal(t, 6, course.ModuleCount)

	learner, err := c.GetLearner(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), learner.ID)
	assert.Equal(t, "Barbara", learner.DisplayName)

	_, err = c.GetCourse(context.Background(), 6)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	before := calls.Load()
	_, err = c.GetLearner(context.Background(), 0)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Equal(t, before, calls.Load(), "invalid ids never reach the network")
}

func TestHTTPCatalog_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPCatalog(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := c.GetCourse(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrCourseNotFound)
}
