package validator

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/siahsang/beatpost/internal/utils/functional"
)

// FieldErrors maps a form field to the first problem found with it.
type FieldErrors[F ~string] map[F]string

func (e FieldErrors[F]) Error() string {
	keys := make([]string, 0, len(e))
	for field := range e {
		keys = append(keys, string(field))
	}
	slices.Sort(keys)

	parts := functional.Map(keys, func(key string) string {
		return key + ": " + e[F(key)]
	})
	return "validation failed: " + strings.Join(parts, "; ")
}

// Details exposes the errors with plain string keys, for JSON responses.
func (e FieldErrors[F]) Details() map[string]string {
	details := make(map[string]string, len(e))
	for field, message := range e {
		details[string(field)] = message
	}
	return details
}

type Validator[F ~string] struct {
	Errors FieldErrors[F]
}

func New[F ~string]() *Validator[F] {
	return &Validator[F]{Errors: make(FieldErrors[F])}
}

func (v *Validator[F]) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *Validator[F]) AddError(key F, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *Validator[F]) Check(ok bool, key F, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Err returns the collected errors, or nil when every check passed.
func (v *Validator[F]) Err() error {
	if v.IsValid() {
		return nil
	}
	return v.Errors
}

func IsMatch(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

func IsUnique(values []string) bool {
	uniqueValues := make(map[string]bool)

	for _, val := range values {
		if _, exists := uniqueValues[val]; exists {
			return false
		}
		uniqueValues[val] = true
	}
	return true
}

// LengthBetween counts characters, not bytes.
func LengthBetween(value string, min, max int) bool {
	n := utf8.RuneCountInString(value)
	return n >= min && n <= max
}

func MaxLength(value string, max int) bool {
	return utf8.RuneCountInString(value) <= max
}

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}
