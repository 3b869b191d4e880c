package port

import (
	"errors"
	"fmt"
)

var (
	// ErrNoNodesAvailable is returned when the ring is empty.
	ErrNoNodesAvailable = errors.New("no cache nodes available")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("cache node request failed")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("routing client is closed")
)

// TransportError reports a failed request to one node. StatusCode is zero
// when no response was received, and Err holds the cause.
type TransportError struct {
	Op         string
	Node       string
	Key        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %q on %s", e.Op, e.Key, e.Node)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
