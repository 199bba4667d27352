package auth

import "context"

// Provider is the authentication interface used by the GQL client and the
// PubSub pool. *Authenticator satisfies this interface.
type Provider interface {
	Validate(ctx context.Context) error
	AccessToken() string
	UserID() string
	Login() string
	SessionID() string
	DeviceID() string
	Headers() map[string]string
	Invalidate()
}
