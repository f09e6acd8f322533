package cgroups

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned for cgroup paths that are not clean,
	// not absolute, or that try to escape the cgroup mount with "..".
	ErrInvalidPath = errors.New("invalid cgroup path")

	// ErrInvalidOperation is returned for requests the resource layer
	// cannot act on, such as an unknown container update op.
	ErrInvalidOperation = errors.New("invalid cgroup operation")

	// ErrInvalidBytesSize is returned when a human-readable size string
	// cannot be parsed into a byte count.
	ErrInvalidBytesSize = errors.New("invalid bytes size")

	// ErrV1NoUnified is returned when spec.Unified keys are requested on
	// the legacy hierarchy.
	ErrV1NoUnified = errors.New("unified resources are not supported on cgroup v1")
)

// ParseError records a failure to parse the contents of a cgroup file.
type ParseError struct {
	Path string
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return "unable to parse " + e.Path + "/" + e.File + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// wrapWrite adds write context without discarding the root cause.
func wrapWrite(dir, file, data string, err error) error {
	return fmt.Errorf("failed to write %q to %q: %w", data, dir+"/"+file, err)
}
