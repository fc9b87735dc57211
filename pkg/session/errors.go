package session

import (
	"errors"
	"net"
	"os"
)

// Typed failures surfaced by the client proxy. The keeper side never
// returns these; it folds per-connection failures into error responses.
var (
	// ErrConnectionFailed means the keeper could not be reached or the
	// connection broke mid-exchange.
	ErrConnectionFailed = errors.New("session: connection failed")
	// ErrTimeout means the 5-second response bound expired.
	ErrTimeout = errors.New("session: timeout")
	// ErrProtocol means a frame did not decode or had an unexpected shape.
	ErrProtocol = errors.New("session: protocol error")
	// ErrRemote carries an error response from the keeper.
	ErrRemote = errors.New("session: remote error")
)

// IsUnavailable reports whether err means no keeper answered in time. Only
// GetOrCreate absorbs this class of failure; every other operation surfaces
// it to the caller.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout)
}

// isTimeout reports whether err is a read or dial deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
