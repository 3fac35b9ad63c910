package credentials

import "context"

// Provider obtains a credential from the user. Request blocks until an
// answer arrives or ctx is cancelled; ok is false when the user declined.
// The bridge never calls Request concurrently with itself.
type Provider interface {
	Request(ctx context.Context) (value string, ok bool)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (string, bool)

func (f ProviderFunc) Request(ctx context.Context) (string, bool) {
	return f(ctx)
}

// Static is a Provider that always answers with a fixed credential.
type Static string

func (s Static) Request(context.Context) (string, bool) {
	return string(s), s != ""
}
