// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"fmt"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// StoreUnavailableError reports a store read that failed after retries.
// It matches types.ErrStoreUnavailable with errors.Is.
type StoreUnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%v: %s failed after %d attempt(s): %v", types.ErrStoreUnavailable, e.Op, e.Attempts, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is types.ErrStoreUnavailable.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == types.ErrStoreUnavailable
}
