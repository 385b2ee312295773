package providers

import "errors"

// ErrProviderUnavailable means no provider is configured for a capability.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrUnknownProvider is returned for a kind nobody registered.
var ErrUnknownProvider = errors.New("unknown provider")
