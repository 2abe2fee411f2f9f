package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validation rule patterns
var (
	// Enrollment codes: letters and digits, optionally with . _ -
	EnrollmentPattern = `^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`

	// Course names are free text but bounded
	CourseNameMaxLength = 120
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Enrollment *regexp.Regexp
}{
	Enrollment: regexp.MustCompile(EnrollmentPattern),
}

// ValidEnrollment reports whether code looks like an enrollment code after
// trimming.
func ValidEnrollment(code string) bool {
	return CompiledPatterns.Enrollment.MatchString(strings.TrimSpace(code))
}

// ValidCourseName reports whether name is non-blank and not too long.
func ValidCourseName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= CourseNameMaxLength
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("enrollment", func(fl validator.FieldLevel) bool {
		return ValidEnrollment(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register enrollment rule: %w", err)
	}
	if err := v.RegisterValidation("coursename", func(fl validator.FieldLevel) bool {
		return ValidCourseName(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register coursename rule: %w", err)
	}
	return nil
}

// RegisterWithGin adds the custom tags to gin's binding validator.
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	return Register(v)
}

// FieldMessage formats one failed rule for callers.
func FieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "enrollment":
		return e.Field() + " must be a valid enrollment code"
	case "coursename":
		return fmt.Sprintf("%s must be a course name of at most %d characters", e.Field(), CourseNameMaxLength)
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
