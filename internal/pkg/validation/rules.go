// Package validation registers the request rules shared by the DTOs with the
// go-playground validator used by gin binding.
package validation

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/yigit/coursecred/internal/app/models"
)

// Validation rule patterns
var (
	// Certificate identifier pattern - 12 uppercase alphanumerics
	CertificateIDPattern = `^[A-Z0-9]{12}$`
)

// CompiledPatterns caches compiled regex patterns for better performance
var CompiledPatterns = struct {
	CertificateID *regexp.Regexp
}{
	CertificateID: regexp.MustCompile(CertificateIDPattern),
}

// Custom tags
const (
	TagRatingSort    = "rating_sort"
	TagRatingStatus  = "rating_status"
	TagCertificateID = "certificate_id"
)

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	rules := map[string]validator.Func{
		TagRatingSort: func(fl validator.FieldLevel) bool {
			return models.RatingSortOrder(fl.Field().String()).Valid()
		},
		TagRatingStatus: func(fl validator.FieldLevel) bool {
			return models.RatingStatus(fl.Field().String()).Valid()
		},
		TagCertificateID: func(fl validator.FieldLevel) bool {
			return CompiledPatterns.CertificateID.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validation %q: %w", tag, err)
		}
	}
	return nil
}

var (
	ginOnce sync.Once
	ginErr  error
)

// RegisterWithGin registers the custom tags with gin's default validator.
// Later calls return the first call's result.
func RegisterWithGin() error {
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			ginErr = fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
			return
		}
		ginErr = Register(v)
	})
	return ginErr
}
