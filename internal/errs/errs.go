// Package errs defines the stable error-kind taxonomy shared by every
// component so callers can distinguish recoverable conditions from bugs
// without parsing message strings.
package errs

import "fmt"

// Kind is a stable, language-neutral error classification tag.
type Kind string

const (
	FeedConnectFailed Kind = "FEED_CONNECT_FAILED"
	FeedAuthRejected  Kind = "FEED_AUTH_REJECTED"
	FeedParseError    Kind = "FEED_PARSE_ERROR"
	FeedRateLimited   Kind = "FEED_RATE_LIMITED"
	FeedMaxReconnects Kind = "FEED_MAX_RECONNECTS"

	DecodeUnknownSelector Kind = "DECODE_UNKNOWN_SELECTOR"
	DecodeShortCalldata   Kind = "DECODE_SHORT_CALLDATA"
	DecodeMalformedABI    Kind = "DECODE_MALFORMED_ABI"
	DecodeUnknownPool     Kind = "DECODE_UNKNOWN_POOL"

	SimProviderDisabled    Kind = "SIM_PROVIDER_DISABLED"
	SimProviderTimeout     Kind = "SIM_PROVIDER_TIMEOUT"
	SimProviderHTTP        Kind = "SIM_PROVIDER_HTTP"
	SimProviderRateLimited Kind = "SIM_PROVIDER_RATE_LIMITED"
	SimAllProvidersFailed  Kind = "SIM_ALL_PROVIDERS_FAILED"
	SimServiceStopped      Kind = "SIM_SERVICE_STOPPED"

	ABExperimentNotFound      Kind = "AB_EXPERIMENT_NOT_FOUND"
	ABInvalidStatusTransition Kind = "AB_INVALID_STATUS_TRANSITION"
	ABStoreUnavailable        Kind = "AB_STORE_UNAVAILABLE"
)

// Error wraps an underlying cause with a stable Kind and the operation that
// produced it, matching the teacher's %w-wrapped fmt.Errorf idiom while
// still exposing a tag callers can switch on.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error, mirroring fmt.Errorf's %w wrapping but tagged with
// a stable Kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is allows kind comparisons such as
// errors.Is(err, &errs.Error{Kind: errs.SimServiceStopped}): an *Error target
// matches when its Kind is equal. A bare Kind is not an error value and
// cannot be a target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
