package apierr

import "errors"

// Kind classifies a failure so the transport can pick a status code. The
// cause is never shown to the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindClientInput
	KindServiceUnavailable
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a request-level failure that the caller can map to a concrete
// wire envelope. Message is safe to return to clients; Cause is for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func ClientInput(message string) *Error {
	return &Error{Kind: KindClientInput, Message: message}
}

func ServiceUnavailable(message string) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: message}
}

func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: InternalMessage, Cause: cause}
}

const InternalMessage = "Internal server error"

// From returns err as *Error, wrapping anything unclassified as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}
