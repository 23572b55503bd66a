package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFoundOrForbidden = errors.New("could not update order: verify it exists and you have permission")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrNotFound            = errors.New("order not found")
)

// Kind classifies workflow failures so surfaces can report them uniformly.
type Kind int

const (
	KindFetch Kind = iota + 1
	KindTransitionRejected
	KindTransitionTransport
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch_error"
	case KindTransitionRejected:
		return "transition_rejected"
	case KindTransitionTransport:
		return "transition_transport"
	case KindSubscription:
		return "subscription_error"
	}
	return "unknown"
}

type Error struct {
	Kind    Kind
	Op      string
	OrderID int64
	Err     error
}

func (e *Error) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("%s order %d: %v", e.Op, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to staff: the underlying cause without the
// operation prefix.
func (e *Error) Message() string {
	return e.Err.Error()
}

// KindOf returns the kind of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}

// UserMessage renders any error for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Message()
	}
	return err.Error()
}
