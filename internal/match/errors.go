package match

import (
	"errors"
	"fmt"
)

// RepositoryUnavailableError reports a storage failure during a matching
// run. The matcher never retries; callers own the retry decision.
type RepositoryUnavailableError struct {
	Op  string
	Err error
}

func (e *RepositoryUnavailableError) Error() string {
	return fmt.Sprintf("repository unavailable during %s: %v", e.Op, e.Err)
}

func (e *RepositoryUnavailableError) Unwrap() error {
	return e.Err
}

// MatchingFailedError marks a matching run that aborted before persisting
// anything.
type MatchingFailedError struct {
	BidCardID string
	Err       error
}

func (e *MatchingFailedError) Error() string {
	return fmt.Sprintf("matching failed for bid card %s: %v", e.BidCardID, e.Err)
}

func (e *MatchingFailedError) Unwrap() error {
	return e.Err
}

// IsRepositoryUnavailable reports whether the error chain contains a
// RepositoryUnavailableError.
func IsRepositoryUnavailable(err error) bool {
	var re *RepositoryUnavailableError
	return errors.As(err, &re)
}
