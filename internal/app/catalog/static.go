package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/apperrors"
	"gopkg.in/yaml.v3"
)

// StaticCatalog serves courses and learners from memory, typically loaded
// from a YAML file.
type StaticCatalog struct {
	mu       sync.RWMutex
	courses  map[int64]models.Course
	learners map[int64]models.Learner
}

type catalogFile struct {
	Courses  []models.Course  `yaml:"courses"`
	Learners []models.Learner `yaml:"learners"`
}

// NewStaticCatalog creates a catalog holding the given entries.
func NewStaticCatalog(courses []models.Course, learners []models.Learner) *StaticCatalog {
	c := &StaticCatalog{
		courses:  make(map[int64]models.Course, len(courses)),
		learners: make(map[int64]models.Learner, len(learners)),
	}
	for _, course := range courses {
		c.PutCourse(course)
	}
	for _, learner := range learners {
		c.PutLearner(learner)
	}
	return c
}

// LoadStaticCatalog reads a YAML catalog file.
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing catalog file: %w", err)
	}

	for _, course := range file.Courses {
		if !models.ValidID(course.ID) {
			return nil, fmt.Errorf("catalog file %s: invalid course id %d", path, course.ID)
		}
	}
	for _, learner := range file.Learners {
		if !models.ValidID(learner.ID) {
			return nil, fmt.Errorf("catalog file %s: invalid learner id %d", path, learner.ID)
		}
	}

	return NewStaticCatalog(file.Courses, file.Learners), nil
}

// PutCourse adds or replaces a course.
func (c *StaticCatalog) PutCourse(course models.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
}

// PutLearner adds or replaces a learner.
func (c *StaticCatalog) PutLearner(learner models.Learner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.learners[learner.ID] = learner
}

// GetCourse implements Catalog.
func (c *StaticCatalog) GetCourse(_ context.Context, courseID int64) (*models.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[courseID]
	if !ok {
		return nil, apperrors.ErrCourseNotFound
	}
	return &course, nil
}

// GetLearner implements Catalog.
func (c *StaticCatalog) GetLearner(_ context.Context, userID int64) (*models.Learner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	learner, ok := c.learners[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &learner, nil
}
