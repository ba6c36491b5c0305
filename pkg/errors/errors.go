// Package errors provides the error handling shared across storax. The
// helpers in this file are code-agnostic plumbing: context wrapping for
// ambient failures, first-error selection for validation chains, and
// aggregation for operations that keep going after individual failures
// (emptying the trash, directory verification). The typed taxonomy the
// engines surface (NotFound, LockTimeout, IntegrityMismatch, ...) lives
// alongside in codes.go; both preserve wrapped causes for errors.Is/As.
package errors

import "fmt"

// WrapError annotates err with formatted context, keeping err reachable
// through the %w chain. A nil err stays nil so call sites can wrap
// unconditionally.
func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// FirstError returns the first non-nil error, or nil. Validation chains
// use it to surface the earliest failure without an if-ladder.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CombineErrors folds a slice of possibly-nil errors into one: nil when
// none failed, the error itself when exactly one did, an aggregate
// otherwise.
func CombineErrors(errs []error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}

	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return fmt.Errorf("%d operations failed: %v", len(kept), kept)
	}
}
