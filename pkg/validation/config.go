package validation

import (
	"errors"
	"fmt"
	"time"
)

// FieldError is one failed configuration check
type FieldError struct {
	Section string
	Field   string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Section, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ConfigValidator checks configuration values fluently and keeps every
// failure instead of stopping at the first.
type ConfigValidator struct {
	section string
	errs    []error
}

// NewConfigValidator starts a validator for one configuration section
func NewConfigValidator(section string) *ConfigValidator {
	return &ConfigValidator{section: section}
}

func (cv *ConfigValidator) fail(field string, err error) *ConfigValidator {
	cv.errs = append(cv.errs, &FieldError{Section: cv.section, Field: field, Err: err})
	return cv
}

func (cv *ConfigValidator) failf(field, format string, args ...any) *ConfigValidator {
	return cv.fail(field, fmt.Errorf(format, args...))
}

// Required rejects an empty string
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.failf(field, "required field is empty")
	}
	return cv
}

// RangeInt rejects values outside [min, max]
func (cv *ConfigValidator) RangeInt(field string, value, min, max int) *ConfigValidator {
	if value < min || value > max {
		return cv.failf(field, "value %d is outside range [%d, %d]", value, min, max)
	}
	return cv
}

// NonNegative rejects negative ints
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	if value < 0 {
		return cv.failf(field, "value %d must be non-negative", value)
	}
	return cv
}

// PositiveInt64 rejects zero and negative sizes
func (cv *ConfigValidator) PositiveInt64(field string, value int64) *ConfigValidator {
	if value <= 0 {
		return cv.failf(field, "value %d must be positive", value)
	}
	return cv
}

// PositiveFloat rejects zero, negatives and NaN
func (cv *ConfigValidator) PositiveFloat(field string, value float64) *ConfigValidator {
	if !(value > 0) {
		return cv.failf(field, "value %g must be positive", value)
	}
	return cv
}

// NonNegativeFloat rejects negatives and NaN
func (cv *ConfigValidator) NonNegativeFloat(field string, value float64) *ConfigValidator {
	if !(value >= 0) {
		return cv.failf(field, "value %g must be non-negative", value)
	}
	return cv
}

// RangeDuration rejects durations outside [min, max]
func (cv *ConfigValidator) RangeDuration(field string, value, min, max time.Duration) *ConfigValidator {
	if value < min || value > max {
		return cv.failf(field, "duration %v is outside range [%v, %v]", value, min, max)
	}
	return cv
}

// OneOf rejects values not in allowed
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	for _, a := range allowed {
		if value == a {
			return cv
		}
	}
	return cv.failf(field, "value %q must be one of %v", value, allowed)
}

// Custom records the error returned by fn, if any
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		return cv.fail(field, err)
	}
	return cv
}

// When runs validations only if condition holds
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors reports whether any check failed
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errs) > 0
}

// Errors returns every failure as a *FieldError
func (cv *ConfigValidator) Errors() []error {
	return cv.errs
}

// Fields lists the failed field names in check order
func (cv *ConfigValidator) Fields() []string {
	out := make([]string, 0, len(cv.errs))
	for _, err := range cv.errs {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe.Field)
		}
	}
	return out
}

// Validate joins all failures, or returns nil
func (cv *ConfigValidator) Validate() error {
	if len(cv.errs) == 0 {
		return nil
	}
	return errors.Join(cv.errs...)
}

// DefaultOr returns value unless it is the zero value
func DefaultOr[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
