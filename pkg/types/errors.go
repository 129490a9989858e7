// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

var (
	// ErrStoreUnavailable marks a graph read that could not complete after
	// bounded retries. It is the only condition that aborts an index build.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrTransient marks a store failure worth retrying (busy database,
	// dropped connection). Store adapters wrap their errors with it.
	ErrTransient = errors.New("transient store failure")
)
