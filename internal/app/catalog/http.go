package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// HTTPConfig configures an HTTPCatalog.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// HTTPCatalog resolves courses and learners against a remote catalog API
// exposing GET /courses/{id} and GET /learners/{id}.
type HTTPCatalog struct {
	client *resty.Client
}

// NewHTTPCatalog creates an HTTPCatalog.
func NewHTTPCatalog(cfg HTTPConfig) *HTTPCatalog {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPCatalog{client: client}
}

// GetCourse implements Catalog.
func (c *HTTPCatalog) GetCourse(ctx context.Context, courseID int64) (*models.Course, error) {
	if !models.ValidID(courseID) {
		return nil, apperrors.ErrCourseNotFound
	}
	var course models.Course
	if err := c.get(ctx, "/courses/"+strconv.FormatInt(courseID, 10), &course, apperrors.ErrCourseNotFound); err != nil {
		return nil, err
	}
	if course.ID == 0 {
		course.ID = courseID
	}
	return &course, nil
}

// GetLearner implements Catalog.
func (c *HTTPCatalog) GetLearner(ctx context.Context, userID int64) (*models.Learner, error) {
	if !models.ValidID(userID) {
		return nil, apperrors.ErrUserNotFound
	}
	var learner models.Learner
	if err := c.get(ctx, "/learners/"+strconv.FormatInt(userID, 10), &learner, apperrors.ErrUserNotFound); err != nil {
		return nil, err
	}
	if learner.ID == 0 {
		learner.ID = userID
	}
	return &learner, nil
}

func (c *HTTPCatalog) get(ctx context.Context, path string, out interface{}, notFound error) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(out).
		Get(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Catalog request failed")
		return fmt.Errorf("catalog request %s: %w", path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return notFound
	case resp.IsError():
		logger.Warn().Int("status", resp.StatusCode()).Str("path", path).Msg("Catalog returned an error status")
		return fmt.Errorf("catalog request %s: unexpected status %d", path, resp.StatusCode())
	}
	return nil
}
