package membership

import "errors"

var (
	// ErrRegistryUnavailable reports that the registry could not be read.
	ErrRegistryUnavailable = errors.New("membership: registry unavailable")
	// ErrListenerFault reports that a change listener returned an error or panicked.
	ErrListenerFault = errors.New("membership: change listener failed")
)
