package backoffice

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"boledger/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const fakeToken = "tok-8841"

// fakeBackoffice is an in-process back-office: a login page carrying a token, a login
// endpoint that sets a numbered session cookie and a report endpoint driven by `pages`.
type fakeBackoffice struct {
	server *httptest.Server

	mu sync.Mutex
	// logins counts successful submits, each sets cookie `sess<n>`.
	logins       int
	loginForms   []url.Values
	loginCookies [][]*http.Cookie
	queries      []url.Values
	pageHTML     string

	pages func(w http.ResponseWriter, r *http.Request, q url.Values)
}

func newFakeBackoffice(t *testing.T) *fakeBackoffice {
	t.Helper()
	fake := &fakeBackoffice{
		pageHTML: fmt.Sprintf(`<html><body><form><input type="hidden" id="randomCode" value="%s"></form></body></html>`, fakeToken),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.loginCookies = append(fake.loginCookies, r.Cookies())
		html := fake.pageHTML
		fake.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "pre", Value: "login-page", Path: "/"})
		w.Header().Set("content-type", "text/html")
		_, _ = w.Write([]byte(html))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		require.NoError(t, err)

		fake.mu.Lock()
		fake.loginForms = append(fake.loginForms, r.PostForm)
		fake.logins++
		n := fake.logins
		fake.mu.Unlock()

		if r.PostForm.Get("randomCode") != fakeToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sess" + strconv.Itoa(n), Value: "v" + strconv.Itoa(n), Path: "/"})
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /report", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fake.mu.Lock()
		fake.queries = append(fake.queries, q)
		pages := fake.pages
		fake.mu.Unlock()

		if pages == nil {
			_, _ = w.Write([]byte(`{"aaData":[]}`))
			return
		}
		pages(w, r, q)
	})

	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeBackoffice) endpoints(t *testing.T, brand Brand) Endpoints {
	t.Helper()
	login := LoginEndpoints{
		Page:   f.server.URL + "/login",
		Submit: f.server.URL + "/login",
	}
	endpoints, err := NewEndpoints(map[Brand]BrandEndpoints{
		brand: {
			Login: login,
			Reports: map[ReportType]ReportEndpoint{
				Affiliates:  {URL: f.server.URL + "/report"},
				SocialMedia: {URL: f.server.URL + "/report"},
			},
		},
	})
	require.NoError(t, err)
	return endpoints
}

func (f *fakeBackoffice) reportURL() string {
	return f.server.URL + "/report"
}

func (f *fakeBackoffice) setPages(fn func(w http.ResponseWriter, r *http.Request, q url.Values)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = fn
}

func (f *fakeBackoffice) setPageHTML(html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageHTML = html
}

func (f *fakeBackoffice) forms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.loginForms...)
}

// cookiesSeen returns the cookies each login page request arrived with.
func (f *fakeBackoffice) cookiesSeen() [][]*http.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*http.Cookie(nil), f.loginCookies...)
}

func (f *fakeBackoffice) recordedQueries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}

func newTestSession(t *testing.T, brand Brand, tel telemetry.API) *Session {
	t.Helper()
	session, err := NewSession(SessionOptions{
		Brand:       brand,
		Credentials: Credentials{Username: "ops", Password: "hunter2"},
		Tel:         tel,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// writeRows answers with `n` distinct rows tagged with the batch and page they belong to.
func writeRows(w http.ResponseWriter, q url.Values, n int) {
	w.Header().Set("content-type", "application/json")
	_, _ = w.Write([]byte(`{"iTotalRecords":0,"aaData":[`))
	for i := 0; i < n; i++ {
		if i > 0 {
			_, _ = w.Write([]byte(","))
		}
		fmt.Fprintf(w, `{"userId":%q,"page":%s,"seq":%d,"turnover":12.5}`, q.Get("userId"), q.Get("pageNumber"), i)
	}
	_, _ = w.Write([]byte(`]}`))
}
