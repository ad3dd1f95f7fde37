// Package source defines the shared contract of the block sources feeding
// the sync pipeline: the sequencer gateway and the settlement layer.
package source

import "errors"

var (
	// ErrBlockNotYetAvailable is returned when a requested height is beyond
	// the source's current head. The caller should poll again later.
	ErrBlockNotYetAvailable = errors.New("block not yet available")

	// ErrNotConfirmed is returned when the settlement layer has no finalized
	// state commitment for the requested height yet.
	ErrNotConfirmed = errors.New("height not confirmed on settlement layer")
)
