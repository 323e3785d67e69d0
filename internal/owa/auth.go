package owa

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result is a successful login.
type Result struct {
	Response *resty.Response
	// Elapsed is the time spent on the login POST, including any time spent
	// waiting on the session's rate limit.
	Elapsed time.Duration
}

// Authenticate logs the session in with the given credentials.
//
// A login that OWA rejects returns an *AuthError, transport failures are
// returned as-is (wrapped). Options are applied to the login POST only.
func Authenticate(ctx context.Context, s *Session, creds Credentials, opts ...RequestOption) (Result, error) {
	ctx, span := tracer.Start(ctx, "Authenticate")
	defer span.End()

	// the logon page sets the session id cookie, the body is not needed.
	_, err := s.Http.R().
		SetContext(ctx).
		Get(pathLogonPage)
	if err != nil {
		s.tel.ReportBroken(report_authenticate, fmt.Errorf("fetch logon page: %w", err))
		span.SetStatus(codes.Error, "failed to fetch logon page")
		return Result{}, fmt.Errorf("owa: fetch logon page: %w", err)
	}

	s.SetCookie(cookiePostBack, "0")

	req := s.Http.R().
		SetContext(ctx).
		SetHeader("Connection", "Keep-Alive").
		SetFormData(map[string]string{
			"destination":    s.Origin.String() + "/owa/",
			"flags":          "0",
			"forcedownlevel": "0",
			"trusted":        "0",
			"username":       creds.Username,
			"password":       creds.Password,
			"isUtf8":         "1",
		})
	applyOptions(req, opts)

	start := time.Now()
	res, err := req.Post(pathLogon)
	elapsed := time.Since(start)
	if err != nil {
		s.tel.ReportBroken(report_authenticate, fmt.Errorf("post credentials: %w", err))
		span.SetStatus(codes.Error, "failed to post credentials")
		return Result{}, fmt.Errorf("owa: post credentials: %w", err)
	}

	finalUrl := res.RawResponse.Request.URL
	outcome := Classify(finalUrl, res.StatusCode())
	span.SetAttributes(
		attribute.String("owa.login.outcome", outcome.Kind.String()),
		attribute.Int64("owa.login.elapsed_ms", elapsed.Milliseconds()),
	)
	s.tel.ReportDebug(
		report_authenticate,
		creds.Username,
		outcome.Kind.String(),
		finalUrl.String(),
		res.StatusCode(),
		elapsed.String(),
	)

	if outcome.Kind == KindSuccess {
		return Result{Response: res, Elapsed: elapsed}, nil
	}

	authErr := &AuthError{
		Kind:        outcome.Kind,
		Credentials: creds,
		Elapsed:     elapsed,
		Reason:      outcome.Reason,
		RawReason:   outcome.RawReason,
	}
	if outcome.Kind == KindUnknown {
		authErr.Response = res
		s.tel.ReportWarning(report_authenticate, authErr, res.StatusCode())
	}
	span.SetStatus(codes.Error, authErr.Error())
	return Result{}, authErr
}
