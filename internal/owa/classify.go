package owa

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Kind names the outcome of a login attempt.
type Kind int

const (
	KindSuccess Kind = iota
	KindExpiredPassword
	KindExternalDomain
	KindIncorrectCredentials
	KindBadReason
	KindMalformedReason
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindExpiredPassword:
		return "expired-password"
	case KindExternalDomain:
		return "external-domain"
	case KindIncorrectCredentials:
		return "incorrect-credentials"
	case KindBadReason:
		return "bad-reason"
	case KindMalformedReason:
		return "malformed-reason"
	case KindUnknown:
		return "unknown-error"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) sentinel() error {
	switch k {
	case KindExpiredPassword:
		return ErrExpiredPassword
	case KindExternalDomain:
		return ErrExternalDomain
	case KindIncorrectCredentials:
		return ErrIncorrectCredentials
	case KindBadReason:
		return ErrBadReason
	case KindMalformedReason:
		return ErrMalformedReason
	case KindUnknown:
		return ErrUnknownLogin
	}
	return ErrOWA
}

// the reason OWA puts in the query when the user name or password was wrong
const reasonIncorrectCredentials = 2

type Outcome struct {
	Kind      Kind
	Reason    int
	RawReason string
}

// Classify maps the final url (after redirects) and status of a login POST
// to an outcome. The checks run in this order and the first match wins:
//
//  1. the url contains "expiredpassword"
//  2. the query has an "extDomain" parameter
//  3. the query has a "reason" parameter
//  4. the status is 404 or 5xx
//
// Anything else is a success.
func Classify(finalUrl *url.URL, status int) Outcome {
	if strings.Contains(finalUrl.String(), "expiredpassword") {
		return Outcome{Kind: KindExpiredPassword}
	}

	query := finalUrl.Query()
	if query.Has("extDomain") {
		return Outcome{Kind: KindExternalDomain}
	}

	if query.Has("reason") {
		raw := query.Get("reason")
		reason, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Outcome{Kind: KindMalformedReason, RawReason: raw}
		}
		if reason == reasonIncorrectCredentials {
			return Outcome{Kind: KindIncorrectCredentials, Reason: reason, RawReason: raw}
		}
		return Outcome{Kind: KindBadReason, Reason: reason, RawReason: raw}
	}

	if status == http.StatusNotFound || (status >= 500 && status <= 599) {
		return Outcome{Kind: KindUnknown}
	}

	return Outcome{Kind: KindSuccess}
}
