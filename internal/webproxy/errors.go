package webproxy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a destination is missing.
	ErrInvalidArgument = errors.New("webproxy: destination is required")

	// ErrInvalidPattern matches every *InvalidPatternError through errors.Is.
	ErrInvalidPattern = errors.New("webproxy: invalid bypass pattern")
)

// InvalidPatternError reports the first bypass pattern that failed to compile.
type InvalidPatternError struct {
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Err     error  `json:"-"`
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid bypass pattern #%d %q: %v", e.Index, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

func IsInvalidPatternErr(err error) bool {
	var e *InvalidPatternError
	return errors.As(err, &e)
}
