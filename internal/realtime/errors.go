package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every sender while the transport link is down.
	ErrNotConnected = errors.New("not connected to the classroom server")
	// ErrInvalidResponse marks an inbound event that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from server")
	// ErrTimeout is returned when no reply arrives within the request window.
	ErrTimeout = errors.New("timed out waiting for the server")
	// ErrBusy is returned when a request of the same kind is still in flight.
	ErrBusy = errors.New("a request of this kind is already in progress")
	// ErrUnknownEvent is returned when subscribing to an event outside the fixed set.
	ErrUnknownEvent = errors.New("unknown event name")
	// ErrNotMounted is returned by binding senders before Mount or after Unmount.
	ErrNotMounted = errors.New("binding is not mounted")
)

// ServerError is an error event the server sent in reply to a request.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
