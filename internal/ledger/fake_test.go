package ledger

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"boledger/internal/backoffice"
	"boledger/internal/components/telemetry"
	"boledger/internal/sheets"

	"github.com/stretchr/testify/require"
)

type fakeBackoffice struct {
	server *httptest.Server

	mu      sync.Mutex
	logins  int
	queries int
}

func newFakeBackoffice(t *testing.T) *fakeBackoffice {
	t.Helper()
	fake := &fakeBackoffice{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<form><input type="hidden" id="randomCode" value="abc"></form>`))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("password") != backoffice.DigestPassword("secret") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fake.mu.Lock()
		fake.logins++
		fake.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s", Path: "/"})
	})
	mux.HandleFunc("GET /broken/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /report", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.queries++
		fake.mu.Unlock()

		q := r.URL.Query()
		if q.Get("pageNumber") != "1" {
			_, _ = w.Write([]byte(`{"aaData":[]}`))
			return
		}
		if q.Get("resultBy") == "1" {
			fmt.Fprintf(w, `{"aaData":[
				{"affiliateName":"aff","affiliateCurrency":"PKR","player":"p1","deposit":"100.00","withdrawal":"0","betCount":"4","turnover":"250.5","profit":"-12"},
				{"affiliateName":"aff","affiliateCurrency":"PKR","player":"p2","deposit":"5","withdrawal":"1","betCount":"1","turnover":"5","profit":"3","bonus":"1"}
			],"userId":%q}`, q.Get("userId"))
			return
		}
		_, _ = w.Write([]byte(`{"aaData":[{"affiliateName":"aff","affiliateCurrency":"PKR","registerCount":12,"firstDepositCount":3,"firstDeposit":"4500","activePlayer":7}]}`))
	})

	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeBackoffice) brand(loginPath string) BrandConfig {
	return BrandConfig{
		Login: LoginConfig{Page: f.server.URL + loginPath, Submit: f.server.URL + "/login"},
		Reports: map[string]ReportEndpointConfig{
			"Affiliates":  {URL: f.server.URL + "/report"},
			"SocialMedia": {URL: f.server.URL + "/report"},
		},
		SourceRange: "SocialMedia!A1:A",
	}
}

func (f *fakeBackoffice) counts() (logins, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.queries
}

func newTestRunner(t *testing.T, cfg Config, source *sheets.Memory, sink sheets.Sink, dumper *Dumper) *Runner {
	t.Helper()
	cfg = cfg.WithDefaults()
	require.NoError(t, cfg.Validate())
	runner, err := NewRunner(Options{
		Config: cfg,
		Secrets: Secrets{
			Credentials: backoffice.Credentials{Username: "ops", Password: "secret"},
			SourceSheet: "src",
		},
		Source: source,
		Sink:   sink,
		Dumper: dumper,
		Tel:    &telemetry.Recorder{},
	})
	require.NoError(t, err)
	return runner
}
