package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMissingToken     = errors.New("backend returned no token")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// InputError lists the fields that failed local validation.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid input: " + strings.Join(names, ", ")
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// Message is the first field message in a stable order.
func (e *InputError) Message() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "Invalid data"
	}
	return e.Fields[names[0]]
}
