package locator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrEmpty is the Result error for a blank stored value.
var ErrEmpty = errors.New("locator: empty value")

// Result is either a parsed value or the reason parsing failed.
type Result[T any] struct {
	value T
	err   error
}

// Valid builds a successful Result.
func Valid[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Invalid builds a failed Result.
func Invalid[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Get returns the parsed value and whether parsing succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.err == nil
}

// OK reports whether parsing succeeded.
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Err returns why parsing failed, or nil.
func (r Result[T]) Err() error {
	return r.err
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Parse decodes and validates a stored locator.
func Parse(raw string) Result[Locator] {
	return parse[Locator](raw, Locator.Normalize)
}

// ParseLocations decodes and validates stored locations.
func ParseLocations(raw string) Result[Locations] {
	return parse[Locations](raw, Locations.Normalize)
}

// Validate checks an already decoded locator against the schema.
func Validate(l Locator) error {
	if err := schema().Struct(l); err != nil {
		return fmt.Errorf("locator: %w", err)
	}
	return nil
}

func parse[T any](raw string, normalize func(T) T) Result[T] {
	if strings.TrimSpace(raw) == "" {
		return Invalid[T](ErrEmpty)
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Invalid[T](fmt.Errorf("locator: decode: %w", err))
	}
	if err := schema().Struct(v); err != nil {
		return Invalid[T](fmt.Errorf("locator: %w", err))
	}
	return Valid(normalize(v))
}
