package backoffice

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"boledger/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Credentials are the back-office login of one operator account.
type Credentials struct {
	Username string
	Password string
}

// Cookies is a cookie name -> value snapshot.
type Cookies map[string]string

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	// StateInvalidated means the vendor rejected a request made with the session's
	// cookies, the session is not logged in again automatically.
	StateInvalidated
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unauthenticated"
	}
}

type SessionOptions struct {
	Brand       Brand
	Credentials Credentials
	// RequestsPerSecond paces every request of the session, <= 0 disables pacing.
	RequestsPerSecond float64
	// Cloudflare wraps the transport with a cloudflare-friendly TLS/header profile.
	Cloudflare bool
	UserAgent  string
	// Output receives a dump of each HTTP exchange, it can be nil.
	Output telemetry.MessageOutput
	Tel    telemetry.API
}

// sessionJar freezes after login so report reads never refresh the authenticated cookies.
type sessionJar struct {
	mu     sync.Mutex
	inner  *cookiejar.Jar
	frozen bool
}

func newSessionJar() (*sessionJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &sessionJar{inner: inner}, nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	frozen := j.frozen
	j.mu.Unlock()
	if frozen {
		return
	}
	j.inner.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *sessionJar) freeze() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.frozen = true
}

// Session is one brand's HTTP session. It is not safe for concurrent use and must
// not be shared between brands, the vendor authenticates per brand domain.
type Session struct {
	brand       Brand
	credentials Credentials
	http        *resty.Client
	jar         *sessionJar
	state       SessionState
	cookies     Cookies
	closed      bool
}

func NewSession(opts SessionOptions) (*Session, error) {
	tel := opts.Tel
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	tel = telemetry.NewScopedAPI("backoffice_session", tel)

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	if opts.Cloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	// per-call deadlines come from the caller's context, this only guards against
	// a caller that forgot one.
	client.SetTimeout(2 * time.Minute)

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel, opts.Output)

	return &Session{
		brand:       opts.Brand,
		credentials: opts.Credentials,
		http:        client,
		jar:         jar,
	}, nil
}

func (s *Session) Brand() Brand {
	return s.brand
}

func (s *Session) State() SessionState {
	return s.state
}

// Cookies returns a copy of the authenticated cookie set, nil before a successful login.
func (s *Session) Cookies() Cookies {
	if s.cookies == nil {
		return nil
	}
	out := make(Cookies, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

// reset drops every cookie so the next handshake starts from a clean jar.
func (s *Session) reset() error {
	jar, err := newSessionJar()
	if err != nil {
		return err
	}
	s.jar = jar
	s.http.SetCookieJar(jar)
	s.state = StateUnauthenticated
	s.cookies = nil
	return nil
}

func (s *Session) authenticated(urls ...string) Cookies {
	cookies := Cookies{}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, c := range s.jar.Cookies(u) {
			cookies[c.Name] = c.Value
		}
	}
	s.jar.freeze()
	s.state = StateAuthenticated
	s.cookies = cookies
	return s.Cookies()
}

// Invalidate marks the session as rejected by the vendor.
func (s *Session) Invalidate() {
	s.state = StateInvalidated
}

// Close releases pooled connections, it is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.http.GetClient().CloseIdleConnections()
	return nil
}
