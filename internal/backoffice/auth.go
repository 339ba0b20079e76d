package backoffice

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"boledger/internal/components/assert"
	"boledger/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("boledger/backoffice")

const report_authenticator_login = "authenticator.login"

// DefaultAuthTimeout bounds each of the two login requests.
const DefaultAuthTimeout = 10 * time.Second

// Authenticator performs the vendor's two step login: fetch the login page for its
// one-time token, then post the credentials together with that token.
type Authenticator struct {
	endpoints Endpoints
	tel       telemetry.API
	timeout   time.Duration
}

func NewAuthenticator(endpoints Endpoints, tel telemetry.API) *Authenticator {
	assert.NotNil(tel)
	return &Authenticator{
		endpoints: endpoints,
		tel:       telemetry.NewScopedAPI("backoffice", tel),
		timeout:   DefaultAuthTimeout,
	}
}

// SetTimeout overrides DefaultAuthTimeout, non-positive values keep the current timeout.
func (a *Authenticator) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	a.timeout = timeout
}

// DigestPassword is the legacy credential digest the vendor expects in place of the
// password: lowercase hex SHA-1. It must not be changed for a stronger hash, the
// vendor would reject it.
func DigestPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// scrapeToken returns the login page's one-time token, empty when the field is missing.
func scrapeToken(doc *goquery.Document) string {
	token := doc.Find("input#randomCode").First().AttrOr("value", "")
	if token != "" {
		return token
	}
	return doc.Find("input[name=randomCode]").First().AttrOr("value", "")
}

// Login clears the session's cookies and establishes a fresh authenticated session for
// a brand's report. Calling it again (for the next report type) always starts over.
// On failure the session stays unauthenticated and a *Error is returned.
func (a *Authenticator) Login(ctx context.Context, s *Session, report ReportType) (Cookies, error) {
	ctx, span := tracer.Start(ctx, "authenticator:Login")
	defer span.End()
	span.SetAttributes(
		attribute.String("brand", string(s.brand)),
		attribute.String("report", report.String()),
	)

	fail := func(err *Error) (Cookies, error) {
		err.Brand = s.brand
		err.Report = report
		a.tel.ReportBroken(report_authenticator_login, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Kind.String())
		return nil, err
	}

	endpoints, err := a.endpoints.Lookup(s.brand, report)
	if err != nil {
		var boErr *Error
		if !errors.As(err, &boErr) {
			boErr = &Error{Kind: KindConfiguration, Err: err}
		}
		return fail(boErr)
	}

	err = s.reset()
	if err != nil {
		return fail(&Error{Kind: KindNetwork, Err: fmt.Errorf("reset cookie jar: %w", err)})
	}

	token, boErr := a.fetchToken(ctx, s, endpoints.LoginPage)
	if boErr != nil {
		return fail(boErr)
	}

	boErr = a.submit(ctx, s, endpoints.LoginSubmit, token)
	if boErr != nil {
		return fail(boErr)
	}

	cookies := s.authenticated(endpoints.LoginSubmit, endpoints.LoginPage, endpoints.Report)
	a.tel.ReportDebug("authenticated", s.brand, report, len(cookies))
	span.SetStatus(codes.Ok, "authenticated")
	return cookies, nil
}

func (a *Authenticator) fetchToken(ctx context.Context, s *Session, loginPage string) (string, *Error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := s.http.R().
		SetContext(reqCtx).
		Get(loginPage)
	if err != nil {
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		return "", &Error{Kind: kind, URL: loginPage, Err: fmt.Errorf("login page request: %w", err)}
	}
	if !res.IsSuccess() {
		return "", &Error{Kind: KindNetwork, URL: loginPage, Status: res.StatusCode(), Err: fmt.Errorf("login page request: unexpected status")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return "", &Error{Kind: KindProtocol, URL: loginPage, Err: fmt.Errorf("parse login page: %w", err)}
	}
	token := scrapeToken(doc)
	if token == "" {
		return "", &Error{Kind: KindProtocol, URL: loginPage, Err: fmt.Errorf("could not find randomCode token on login page")}
	}
	return token, nil
}

func (a *Authenticator) submit(ctx context.Context, s *Session, loginSubmit, token string) *Error {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	form := url.Values{
		"username":   {s.credentials.Username},
		"password":   {DigestPassword(s.credentials.Password)},
		"randomCode": {token},
	}

	res, err := s.http.R().
		SetContext(reqCtx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8").
		SetHeader("Accept", "*/*").
		SetBody(form.Encode()).
		Post(loginSubmit)
	if err != nil {
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		return &Error{Kind: kind, URL: loginSubmit, Err: fmt.Errorf("login request: %w", err)}
	}
	if !res.IsSuccess() {
		return &Error{Kind: KindNetwork, URL: loginSubmit, Status: res.StatusCode(), Err: fmt.Errorf("login request: unexpected status")}
	}
	return nil
}
