package owa

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"owascrape/internal/components/assert"
	"owascrape/internal/components/telemetry"
	"owascrape/lib/restyutil"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type SessionOptions struct {
	// Origin is the scheme and host of the OWA, ex. https://mail.example.com
	Origin string
	// Timeout applies to every request, defaults to 30 seconds.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// RequestsPerSecond limits requests across a session and all of its
	// siblings, zero disables the limit.
	RequestsPerSecond float64
	// Telemetry defaults to telemetry.SlogAPI.
	Telemetry telemetry.API
	// DumpOutput receives full http messages when debug logging is on.
	DumpOutput restyutil.InstrumentOutput
}

// Session is an http client bound to a single OWA origin. The cookie jar is
// owned by the session created with NewSession, siblings hold a reference to
// the same jar.
type Session struct {
	Origin *url.URL
	Http   *resty.Client

	opts    SessionOptions
	jar     http.CookieJar
	limiter *rate.Limiter
	tel     telemetry.API
}

func NewSession(opts SessionOptions) (*Session, error) {
	origin, err := url.Parse(strings.TrimRight(opts.Origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("owa: parse origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("owa: origin must be absolute, got '%s'", opts.Origin)
	}
	opts.Origin = origin.String()

	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.SlogAPI{}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return newSession(origin, opts, jar, limiter), nil
}

func newSession(origin *url.URL, opts SessionOptions, jar http.CookieJar, limiter *rate.Limiter) *Session {
	assert.NotEmptyStr(origin.Host)
	tel := telemetry.NewScopedAPI("owa", opts.Telemetry)

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.Origin)
	httpClient.SetCookieJar(jar)
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetTimeout(opts.Timeout)
	// no domain check, a login can redirect to an external domain and the
	// classifier needs to see where it ended up.
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if opts.InsecureSkipVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	if limiter != nil {
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, tracer, opts.DumpOutput)

	return &Session{
		Origin:  origin,
		Http:    httpClient,
		opts:    opts,
		jar:     jar,
		limiter: limiter,
		tel:     tel,
	}
}

// Sibling creates a separate http client that shares this session's cookie
// jar (and with it the authentication state) and rate limiter.
func (s *Session) Sibling() *Session {
	assert.NotNil(s.jar)
	return newSession(s.Origin, s.opts, s.jar, s.limiter)
}

// Jar returns the cookie jar shared by this session and its siblings.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

func (s *Session) cookieUrl() *url.URL {
	u := *s.Origin
	u.Path = "/"
	return &u
}

// SetCookie stores a cookie scoped to the origin.
func (s *Session) SetCookie(name, value string) {
	s.jar.SetCookies(s.cookieUrl(), []*http.Cookie{{
		Name:  name,
		Value: value,
		Path:  "/",
	}})
}

// Cookie returns the value of a cookie that would be sent to the origin.
func (s *Session) Cookie(name string) (string, bool) {
	for _, c := range s.jar.Cookies(s.cookieUrl()) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// RequestOption modifies a request after its defaults have been set, so it
// can override headers and form fields.
type RequestOption func(req *resty.Request)

func WithHeader(key, value string) RequestOption {
	return func(req *resty.Request) {
		req.SetHeader(key, value)
	}
}

func WithFormField(key, value string) RequestOption {
	return func(req *resty.Request) {
		req.SetFormData(map[string]string{key: value})
	}
}

func applyOptions(req *resty.Request, opts []RequestOption) *resty.Request {
	for _, opt := range opts {
		opt(req)
	}
	return req
}
