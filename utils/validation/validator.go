package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// YouTubeMessage is reported for video links outside YouTube
const YouTubeMessage = "Ссылка должна быть на сайт https://www.youtube.com/..."

// PasswordMismatchMessage is reported when password1 and password2 differ
const PasswordMismatchMessage = "Пароль должен совпадать"

var youTubePrefixes = []string{
	"https://www.youtube.com/",
	"https://www.youtu.be/",
	"https://youtube.com/",
	"https://youtu.be/",
	"youtube.com/",
	"youtu.be/",
}

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance with the custom tags registered.
// Field names in errors follow the json tag.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("youtube", func(fl validator.FieldLevel) bool {
		return IsYouTubeURL(fl.Field().String())
	})
	return &Validator{
		validate: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// IsYouTubeURL reports whether link is empty or points at YouTube
func IsYouTubeURL(link string) bool {
	if link == "" {
		return true
	}
	for _, prefix := range youTubePrefixes {
		if strings.HasPrefix(link, prefix) {
			return true
		}
	}
	return false
}

// FormatValidationErrors converts validation errors to a user-friendly format
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errors[field] = fmt.Sprintf("%s is required", field)
			case "email":
				errors[field] = "Invalid email format"
			case "min":
				errors[field] = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
			case "max":
				errors[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
			case "eqfield":
				errors[field] = PasswordMismatchMessage
			case "youtube":
				errors[field] = YouTubeMessage
			case "oneof":
				errors[field] = fmt.Sprintf("%s must be one of: %s", field, e.Param())
			default:
				errors[field] = fmt.Sprintf("%s is invalid", field)
			}
		}
	}

	return errors
}

// SanitizeString removes potentially dangerous characters
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
