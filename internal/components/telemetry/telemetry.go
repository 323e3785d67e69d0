package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics.
// Components report through it instead of logging directly so tests can
// record and assert on what got reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed.
	//
	// The `id` should name the **component** that broke, not the specific line or request inside of it
	// that failed. A good id is one you could read off a log line in production and immediately know where
	// to start looking.
	//
	// ex. Suppose a page request fails while scraping the address book in a function called `ScrapeContacts`.
	// The id should be `scrape-contacts` (scoped to `owa: scrape-contacts` by ScopedAPI), no more granular
	// than that. Which page failed or whether it was the transport or the status code belongs in a param or
	// in an error wrapped with fmt.Errorf.
	//
	// The `report_...` constants in each package list the ids that package uses.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// Note 1: ScopedAPI already prefixes the package, so an id only needs the `<component>` or
	// `<component>.<method>` part.
	//
	// Note 2: an id only locates something, it does not need to say that it broke. That is already said by
	// calling ReportBroken instead of ReportWarning, so `service-call` instead of `service-call-failed`.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a scenario that does not necessarily indicate brokenness, but may be worth
	// investigating (ex. a login that failed for an unknown reason).
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports some debug information that will be ignored in production
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current count of something at the current time (ex. the number of contacts
	// a scrape found), these counts are points of data over time and should not be summed.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportCount(id string, count int64)
}

// ScopedAPI is a telemetry API that prefixes every id with a namespace, like a "sub" logger. Scopes can
// be nested, the outermost ScopedAPI reports through the inner ones so its namespace ends up last.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
