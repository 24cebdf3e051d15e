package notification

import "errors"

var (
	ErrNotConfigured   = errors.New("notification channel not configured")
	ErrOptedOut        = errors.New("recipient opted out of channel")
	ErrSendFailed      = errors.New("provider send failed")
	ErrNoContactMethod = errors.New("recipient has no usable contact method")
	ErrLookupFailed    = errors.New("recipient or subject lookup failed")
	ErrTransientStore  = errors.New("store operation failed")
)

// ReasonOf maps an error from the taxonomy to its reason code.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, ErrOptedOut):
		return ReasonOptedOut
	case errors.Is(err, ErrNoContactMethod):
		return ReasonNoContactMethod
	case errors.Is(err, ErrLookupFailed):
		return ReasonLookupFailed
	default:
		return ReasonSendFailed
	}
}
