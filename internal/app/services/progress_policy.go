package services

import (
	"fmt"

	"github.com/yigit/coursecred/internal/app/models"
)

// ProgressPolicy turns module reports into an enrollment's overall percentage.
type ProgressPolicy interface {
	Name() string
	// Overall returns a value in 0..100. moduleCount is the catalog's module
	// count for the course, or 0 when unknown.
	Overall(records []*models.ProgressRecord, moduleCount int) int
}

// Progress policy names
const (
	PolicyMax      = "max"
	PolicyFraction = "fraction"
)

// NewProgressPolicy returns the policy registered under name.
func NewProgressPolicy(name string) (ProgressPolicy, error) {
	switch name {
	case PolicyMax, "":
		return MaxPolicy{}, nil
	case PolicyFraction:
		return FractionPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown progress policy %q", name)
}

// MaxPolicy uses the highest percentage reported for any single module.
type MaxPolicy struct{}

// Name implements ProgressPolicy.
func (MaxPolicy) Name() string { return PolicyMax }

// Overall implements ProgressPolicy.
func (MaxPolicy) Overall(records []*models.ProgressRecord, _ int) int {
	best := 0
	for _, r := range records {
		if r.Percentage > best {
			best = r.Percentage
		}
	}
	return clampPercentage(best)
}

// FractionPolicy uses the share of the course's modules reported at 100,
// rounded down. Without a known module count it behaves like MaxPolicy.
type FractionPolicy struct{}

// Name implements ProgressPolicy.
func (FractionPolicy) Name() string { return PolicyFraction }

// Overall implements ProgressPolicy.
func (FractionPolicy) Overall(records []*models.ProgressRecord, moduleCount int) int {
	if moduleCount <= 0 {
		return MaxPolicy{}.Overall(records, moduleCount)
	}
	completed := 0
	for _, r := range records {
		if r.Percentage >= models.CompletePercentage {
			completed++
		}
	}
	return clampPercentage(completed * models.CompletePercentage / moduleCount)
}

func clampPercentage(p int) int {
	switch {
	case p < 0:
		return 0
	case p > models.CompletePercentage:
		return models.CompletePercentage
	}
	return p
}
