package owa

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrOWA is the root of every error this package defines.
var ErrOWA = errors.New("owa")

var (
	ErrMissingCanary        = fmt.Errorf("%w: no X-OWA-Canary cookie could be found", ErrOWA)
	ErrExpiredPassword      = fmt.Errorf("%w: password has expired", ErrOWA)
	ErrExternalDomain       = fmt.Errorf("%w: login redirects to an external service", ErrOWA)
	ErrIncorrectCredentials = fmt.Errorf("%w: the user name or password isn't correct", ErrOWA)
	ErrBadReason            = fmt.Errorf("%w: unexpected reason number", ErrOWA)
	ErrMalformedReason      = fmt.Errorf("%w: reason is not a number", ErrOWA)
	ErrUnknownLogin         = fmt.Errorf("%w: login failed due to an unknown error", ErrOWA)
)

type Credentials struct {
	Username string
	Password string
}

// LogValue keeps the password out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "<redacted>"),
	)
}

// AuthError is returned by Authenticate for every login outcome other than
// success. Use errors.Is with the Err* sentinels (or inspect Kind) to branch
// on the outcome.
type AuthError struct {
	Kind        Kind
	Credentials Credentials
	// Elapsed is the time spent on the login POST (rate limit wait included).
	Elapsed time.Duration
	// Reason is set for KindBadReason.
	Reason int
	// RawReason is set for KindBadReason and KindMalformedReason.
	RawReason string
	// Response is set for KindUnknown.
	Response *resty.Response
}

func (e *AuthError) Error() string {
	user := e.Credentials.Username
	switch e.Kind {
	case KindExpiredPassword:
		return fmt.Sprintf("owa: the password for %s has expired", user)
	case KindExternalDomain:
		return fmt.Sprintf("owa: the login page for %s redirects to an external service (likely Office365)", user)
	case KindIncorrectCredentials:
		return fmt.Sprintf("owa: the user name or password for %s isn't correct", user)
	case KindBadReason:
		return fmt.Sprintf("owa: login for %s returned an unexpected reason number: %d", user, e.Reason)
	case KindMalformedReason:
		return fmt.Sprintf("owa: login for %s returned a non-numeric reason: '%s'", user, e.RawReason)
	case KindUnknown:
		status := 0
		if e.Response != nil {
			status = e.Response.StatusCode()
		}
		return fmt.Sprintf("owa: login for %s failed due to an unknown error (status %d)", user, status)
	}
	return fmt.Sprintf("owa: login for %s failed: %s", user, e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Kind.sentinel()
}
