package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrPublish      = errors.New("publish error")
)

// PublishError carries the transport failures of one publish attempt, keyed
// by platform. The post is left in Failed until a caller retries it.
type PublishError struct {
	PostID   string
	Failures map[PlatformType]error
}

func (e *PublishError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		names = append(names, string(p))
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[PlatformType(name)]))
	}
	return fmt.Sprintf("publish post %s failed (%s)", e.PostID, strings.Join(parts, "; "))
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublish
}

func (e *PublishError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
