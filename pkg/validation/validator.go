package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-graphview/pkg/document"
)

// ErrInvalidWorkspaceID wraps every workspace id rejection
var ErrInvalidWorkspaceID = errors.New("invalid workspace id")

var (
	validate *validator.Validate

	// MaxWorkspaceIDLength bounds workspace ids accepted from callers
	MaxWorkspaceIDLength = 128

	workspacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

func init() {
	validate = validator.New()
}

// ValidateStruct checks a struct against its `validate` tags
func ValidateStruct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	return formatValidationError(validate.Struct(v))
}

// ValidateDocument checks a document before it is written to a store
func ValidateDocument(doc *document.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}
	return ValidateStruct(doc)
}

// ValidateWorkspaceID checks a workspace id taken from a URL or flag.
// Ids become directory names and object-key prefixes, so path separators
// and leading dots are rejected.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWorkspaceID)
	}
	if len(id) > MaxWorkspaceIDLength {
		return fmt.Errorf("%w: exceeds maximum length of %d characters", ErrInvalidWorkspaceID, MaxWorkspaceIDLength)
	}
	if !workspacePattern.MatchString(id) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidWorkspaceID, id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
