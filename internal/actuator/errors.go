package actuator

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTimeout    = errors.New("actuator request timed out")
	ErrConnection = errors.New("actuator connection failed")
)

// StatusError is a response other than 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("actuator responded with status %d", e.Code)
}

type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindStatus     ErrorKind = "status"
	KindCanceled   ErrorKind = "canceled"
	KindOther      ErrorKind = "other"
)

func Classify(err error) ErrorKind {
	var statusErr *StatusError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.As(err, &statusErr):
		return KindStatus
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindOther
	}
}

// wrapTransport tags a transport failure as a timeout or a connection error.
func wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
