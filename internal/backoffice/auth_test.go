package backoffice

import (
	"context"
	"testing"
	"time"

	"boledger/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestDigestPassword(t *testing.T) {
	require.Equal(t, "f3bbbd66a63d4bf1747940578ec3d0103530e21d", DigestPassword("hunter2"))
	require.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", DigestPassword(""))
}

func TestLogin(t *testing.T) {
	fake := newFakeBackoffice(t)
	rec := &telemetry.Recorder{}
	session := newTestSession(t, "brandx", rec)
	auth := NewAuthenticator(fake.endpoints(t, "brandx"), rec)

	cookies, err := auth.Login(context.Background(), session, Affiliates)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, session.State())
	require.Equal(t, "v1", cookies["sess1"])
	require.Equal(t, "login-page", cookies["pre"])

	forms := fake.forms()
	require.Len(t, forms, 1)
	form := forms[0]
	require.Equal(t, "ops", form.Get("username"))
	require.Equal(t, DigestPassword("hunter2"), form.Get("password"))
	require.Equal(t, fakeToken, form.Get("randomCode"))
}

func TestLoginIgnoresZeroTimeout(t *testing.T) {
	fake := newFakeBackoffice(t)
	rec := &telemetry.Recorder{}
	session := newTestSession(t, "brandx", rec)
	auth := NewAuthenticator(fake.endpoints(t, "brandx"), rec)

	auth.SetTimeout(0)
	require.Equal(t, DefaultAuthTimeout, auth.timeout)
	auth.SetTimeout(-time.Second)
	require.Equal(t, DefaultAuthTimeout, auth.timeout)

	_, err := auth.Login(context.Background(), session, Affiliates)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, session.State())

	auth.SetTimeout(3 * time.Second)
	require.Equal(t, 3*time.Second, auth.timeout)
}

func TestLoginTwiceStartsFromCleanJar(t *testing.T) {
	fake := newFakeBackoffice(t)
	rec := &telemetry.Recorder{}
	session := newTestSession(t, "brandx", rec)
	auth := NewAuthenticator(fake.endpoints(t, "brandx"), rec)

	first, err := auth.Login(context.Background(), session, Affiliates)
	require.NoError(t, err)
	require.Contains(t, first, "sess1")

	second, err := auth.Login(context.Background(), session, SocialMedia)
	require.NoError(t, err)
	require.Contains(t, second, "sess2")
	require.NotContains(t, second, "sess1")

	seen := fake.cookiesSeen()
	require.Len(t, seen, 2)
	require.Empty(t, seen[0])
	require.Empty(t, seen[1], "second handshake must not carry cookies from the first")

	// the caller's copy is detached from the session.
	second["sess2"] = "tampered"
	require.Equal(t, "v2", session.Cookies()["sess2"])
}

func TestLoginFailures(t *testing.T) {
	t.Run("unknown brand", func(t *testing.T) {
		fake := newFakeBackoffice(t)
		rec := &telemetry.Recorder{}
		session := newTestSession(t, "brandy", rec)
		auth := NewAuthenticator(fake.endpoints(t, "brandx"), rec)

		_, err := auth.Login(context.Background(), session, Affiliates)
		require.True(t, IsKind(err, KindConfiguration), err)
		require.Empty(t, fake.cookiesSeen(), "no request is made for an unknown brand")
		require.True(t, rec.Has("broken", report_authenticator_login))
	})

	t.Run("missing token", func(t *testing.T) {
		fake := newFakeBackoffice(t)
		fake.setPageHTML(`<html><body><form><input name="username"></form></body></html>`)
		rec := &telemetry.Recorder{}
		session := newTestSession(t, "brandx", rec)
		auth := NewAuthenticator(fake.endpoints(t, "brandx"), rec)

		cookies, err := auth.Login(context.Background(), session, Affiliates)
		require.Nil(t, cookies)
		require.True(t, IsKind(err, KindProtocol), err)
		require.Equal(t, StateUnauthenticated, session.State())
		require.Empty(t, fake.forms())

		var boErr *Error
		require.ErrorAs(t, err, &boErr)
		require.Equal(t, Brand("brandx"), boErr.Brand)
		require.Equal(t, Affiliates, boErr.Report)
	})

	t.Run("token by name", func(t *testing.T) {
		fake := newFakeBackoffice(t)
		fake.setPageHTML(`<form><input type="hidden" name="randomCode" value="` + fakeToken + `"></form>`)
		session := newTestSession(t, "brandx", &telemetry.Recorder{})
		auth := NewAuthenticator(fake.endpoints(t, "brandx"), &telemetry.Recorder{})

		_, err := auth.Login(context.Background(), session, Affiliates)
		require.NoError(t, err)
	})

	t.Run("rejected submit", func(t *testing.T) {
		fake := newFakeBackoffice(t)
		fake.setPageHTML(`<input id="randomCode" value="stale">`)
		session := newTestSession(t, "brandx", &telemetry.Recorder{})
		auth := NewAuthenticator(fake.endpoints(t, "brandx"), &telemetry.Recorder{})

		_, err := auth.Login(context.Background(), session, Affiliates)
		require.True(t, IsKind(err, KindNetwork), err)

		var boErr *Error
		require.ErrorAs(t, err, &boErr)
		require.Equal(t, 403, boErr.Status)
		require.Equal(t, StateUnauthenticated, session.State())
		require.Nil(t, session.Cookies())
	})

	t.Run("unreachable", func(t *testing.T) {
		fake := newFakeBackoffice(t)
		endpoints := fake.endpoints(t, "brandx")
		fake.server.Close()

		session := newTestSession(t, "brandx", &telemetry.Recorder{})
		auth := NewAuthenticator(endpoints, &telemetry.Recorder{})
		_, err := auth.Login(context.Background(), session, Affiliates)
		require.True(t, IsKind(err, KindNetwork), err)
	})
}
