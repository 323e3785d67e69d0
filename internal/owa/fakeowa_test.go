package owa

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	fakeSessionCookie = "ASP.NET_SessionId"
	fakeAuthCookie    = "cadata"
	fakeCanary        = "canary-1234"
	fakeDialogToken   = "dialog-token"
)

type serviceRequest struct {
	action string
	header http.Header
	body   map[string]any
}

// fakeOwa is a minimal OWA 2010 server, just enough of the login, address
// book dialog, service.svc and ECP endpoints to exercise the client.
type fakeOwa struct {
	t      *testing.T
	server *httptest.Server

	// login handles the credentials POST after it has been recorded, the
	// default sets the auth cookies and redirects to the inbox.
	login http.HandlerFunc
	// pages[offset] is the list of names shown at that paging offset.
	pages [][]string
	// homePage is served at the ECP home page.
	homePage string

	mutex            sync.Mutex
	loginForm        url.Values
	loginCookies     map[string]string
	requestedOffsets map[int]int
	serviceRequests  []serviceRequest
}

type fakeOption func(f *fakeOwa)

func withLogin(login http.HandlerFunc) fakeOption {
	return func(f *fakeOwa) {
		f.login = login
	}
}

func withPages(pages ...[]string) fakeOption {
	return func(f *fakeOwa) {
		f.pages = pages
	}
}

func withHomePage(homePage string) fakeOption {
	return func(f *fakeOwa) {
		f.homePage = homePage
	}
}

// newFakeOwa configures the server before it starts, so handlers never race
// with the test on configuration.
func newFakeOwa(t *testing.T, opts ...fakeOption) *fakeOwa {
	f := &fakeOwa{
		t:                t,
		requestedOffsets: map[int]int{},
		loginCookies:     map[string]string{},
	}
	f.login = f.loginOk
	for _, opt := range opts {
		opt(f)
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOwa) newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(SessionOptions{Origin: f.server.URL})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fakeOwa) loginOk(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: fakeAuthCookie, Value: "authenticated", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: cookieCanary, Value: fakeCanary, Path: "/"})
	http.Redirect(w, r, "/owa/", http.StatusFound)
}

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, location, http.StatusFound)
	}
}

func respondStatus(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

func (f *fakeOwa) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == pathLogon && r.Method == http.MethodPost:
		f.handleLogin(w, r)
	case strings.HasPrefix(r.URL.Path, "/owa/auth/"):
		http.SetCookie(w, &http.Cookie{Name: fakeSessionCookie, Value: "session-1", Path: "/"})
		io.WriteString(w, "<html><body>logon</body></html>")
	case r.URL.Path == pathService:
		f.handleService(w, r)
	case r.URL.Path == pathHomePage:
		io.WriteString(w, f.homePage)
	case r.URL.Path == "/owa/" && r.URL.Query().Get("ae") == "Dialog":
		f.handleDialog(w, r)
	case r.URL.Path == "/owa/":
		io.WriteString(w, "<html><body>inbox</body></html>")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeOwa) handleLogin(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		f.t.Errorf("parse login form: %v", err)
	}

	f.mutex.Lock()
	f.loginForm = r.PostForm
	for _, c := range r.Cookies() {
		f.loginCookies[c.Name] = c.Value
	}
	f.mutex.Unlock()

	f.login(w, r)
}

func (f *fakeOwa) authenticated(r *http.Request) bool {
	c, err := r.Cookie(fakeAuthCookie)
	return err == nil && c.Value == "authenticated"
}

func (f *fakeOwa) handleDialog(w http.ResponseWriter, r *http.Request) {
	if !f.authenticated(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodGet {
		io.WriteString(w, dialogHtml(nil))
		return
	}

	err := r.ParseForm()
	if err != nil {
		f.t.Errorf("parse dialog form: %v", err)
	}
	if r.PostForm.Get("hidtoken") != fakeDialogToken {
		f.t.Errorf("dialog form was not repeated, got %v", r.PostForm)
	}
	offset, err := strconv.Atoi(r.PostForm.Get("hidpg"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mutex.Lock()
	f.requestedOffsets[offset]++
	f.mutex.Unlock()

	var names []string
	if offset < len(f.pages) {
		names = f.pages[offset]
	}
	io.WriteString(w, dialogHtml(names))
}

func (f *fakeOwa) handleService(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	var body map[string]any
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		f.t.Errorf("decode service body: %v", err)
	}

	f.mutex.Lock()
	f.serviceRequests = append(f.serviceRequests, serviceRequest{
		action: action,
		header: r.Header.Clone(),
		body:   body,
	})
	f.mutex.Unlock()

	if r.Header.Get("X-OWA-Canary") != fakeCanary {
		w.WriteHeader(449)
		return
	}
	w.Header().Set("content-type", "application/json")
	fmt.Fprintf(w, `{"Action":%q}`, action)
}

// dialogHtml renders the address book dialog as OWA 2010 does: three header
// rows followed by one row per contact, the name in the third column.
func dialogHtml(names []string) string {
	var b strings.Builder
	b.WriteString(`<html><body><form id="frm" method="post">`)
	b.WriteString(`<input type="hidden" name="hidpid" value="AddressBook">`)
	fmt.Fprintf(&b, `<input type="hidden" name="hidtoken" value="%s">`, fakeDialogToken)
	b.WriteString(`<input type="hidden" name="hidpg" value="0">`)
	b.WriteString(`<table class="lvw">`)
	b.WriteString(`<tr><th></th><th></th><th>Name</th></tr>`)
	b.WriteString(`<tr><td colspan="3"><img src="sep.gif"></td></tr>`)
	b.WriteString(`<tr><td></td><td></td><td></td></tr>`)
	for _, name := range names {
		fmt.Fprintf(
			&b,
			`<tr><td><input type="checkbox"></td><td><img src="contact.gif"></td><td>%s&nbsp; </td><td>mail</td></tr>`,
			html.EscapeString(name),
		)
	}
	b.WriteString(`</table></form></body></html>`)
	return b.String()
}

func (f *fakeOwa) recordedLoginForm() url.Values {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.loginForm
}

func (f *fakeOwa) recordedLoginCookie(name string) string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.loginCookies[name]
}

func (f *fakeOwa) recordedOffsets() map[int]int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make(map[int]int, len(f.requestedOffsets))
	for k, v := range f.requestedOffsets {
		out[k] = v
	}
	return out
}

func (f *fakeOwa) recordedServiceRequests() []serviceRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]serviceRequest{}, f.serviceRequests...)
}
