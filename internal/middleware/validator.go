package middleware

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bryanwahyu/codescan/internal/domain/apperr"
)

var projectKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,400}$`)

// Validator wraps go-playground/validator with the request tags used here:
// notblank and projectkey.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// pakai nama field json di pesan error
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("projectkey", func(fl validator.FieldLevel) bool {
		return ValidateProjectKey(fl.Field().String()) == nil
	})
	return &Validator{v: v}
}

// Struct validates s and returns an apperr Validation error listing the
// offending fields.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		parts = append(parts, fe.Field()+": "+describe(fe))
	}
	return apperr.Validation(strings.Join(fields, ", ") + " invalid").WithDetails(strings.Join(parts, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "projectkey":
		return "is not a valid project key"
	default:
		return "failed " + fe.Tag()
	}
}

// ValidateProjectKey checks the characters the engine accepts in keys.
func ValidateProjectKey(key string) error {
	if key == "" {
		return apperr.Validation("projectKey is required")
	}
	if !projectKeyPattern.MatchString(key) {
		return apperr.Validation("invalid projectKey format")
	}
	return nil
}

// SanitizeString removes control characters and trims the input.
func SanitizeString(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit clamps a list limit to 1..100, defaulting to 20.
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
