// Package owa authenticates against the browser-facing login flow of an
// Exchange 2010 era Outlook Web App and scrapes the account's contacts from
// the address book dialog. It also wraps the handful of JSON directory
// calls exposed by service.svc.
package owa

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("owascrape.owa")
var meter = otel.Meter("owascrape.owa")

const (
	pathLogonPage   = "/owa/auth/logon.aspx"
	pathLogon       = "/owa/auth.owa"
	pathAddressBook = "/owa/?ae=Dialog&t=AddressBook&ctx=1"
	pathService     = "/owa/service.svc"
	pathHomePage    = "/ecp/PersonalSettings/HomePage.aspx"
)

const (
	// OWA 2010 only takes the non-postback login branch when this is set.
	cookiePostBack = "PBack"
	cookieCanary   = "X-OWA-Canary"
)

const (
	report_authenticate         = "authenticate"
	report_scrape_contacts      = "scrape-contacts"
	report_fetch_contact_page   = "fetch-contact-page"
	report_service_call         = "service-call"
	report_get_account_identity = "get-account-identity"
)
