package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/five82/homesim/internal/storage"
)

// Credentials names how a request authenticates.
type Credentials string

const (
	// CredentialsInclude sends the session cookie and bearer token.
	CredentialsInclude Credentials = "include"
	// CredentialsOmit sends neither.
	CredentialsOmit Credentials = "omit"
)

const (
	// DefaultBaseURL is the API root used when none is configured.
	DefaultBaseURL = "http://localhost:8000/api/"
	// SessionCookie carries the session token for credentialed requests.
	SessionCookie = "homesim_session"

	defaultUserAgent         = "homesim/0.1"
	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 20
	maxLoggedBody            = 512
)

// Options configures a Store. Nothing is read from the environment here.
type Options struct {
	BaseURL        string
	UseCredentials bool
	SessionToken   string
	// Verbose logs every request and response at debug level.
	Verbose bool
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests. Zero uses the default,
	// a negative value disables throttling.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

type strategy struct {
	creds Credentials
	http  *http.Client
	token string
}

// Store talks to the device and preset REST API.
type Store struct {
	baseURL    *url.URL
	strategies []strategy
	limiter    *rate.Limiter
	verbose    bool
	userAgent  string
	logger     *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New builds a Store. Requests try the configured credential mode first and
// then fall back to omitting credentials.
func New(opts Options) (*Store, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	configured := CredentialsOmit
	if opts.UseCredentials {
		configured = CredentialsInclude
	}
	var strategies []strategy
	for _, creds := range []Credentials{configured, CredentialsOmit} {
		st, err := newStrategy(creds, base, strings.TrimSpace(opts.SessionToken), timeout)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, st)
	}

	return &Store{
		baseURL:    base,
		strategies: strategies,
		limiter:    newLimiter(opts.RequestsPerSecond),
		verbose:    opts.Verbose,
		userAgent:  defaultUserAgent,
		logger:     logger.With("component", "remote-store"),
	}, nil
}

// Mode implements storage.Store.
func (s *Store) Mode() storage.Mode { return storage.ModeRemote }

// BaseURL returns the normalized API root.
func (s *Store) BaseURL() string { return s.baseURL.String() }

// Strategies returns the credential modes in the order they are attempted.
func (s *Store) Strategies() []Credentials {
	out := make([]Credentials, 0, len(s.strategies))
	for _, st := range s.strategies {
		out = append(out, st.creds)
	}
	return out
}

func newStrategy(creds Credentials, base *url.URL, token string, timeout time.Duration) (strategy, error) {
	client := &http.Client{Timeout: timeout}
	st := strategy{creds: creds, http: client}
	if creds != CredentialsInclude {
		return st, nil
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return strategy{}, fmt.Errorf("create cookie jar: %w", err)
	}
	if token != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
	}
	client.Jar = jar
	st.token = token
	return st, nil
}

func newLimiter(rps float64) *rate.Limiter {
	switch {
	case rps < 0:
		return rate.NewLimiter(rate.Inf, 0)
	case rps == 0:
		rps = defaultRequestsPerSecond
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// call runs one operation through every credential strategy until one
// returns a 2xx response, and returns that response body.
func (s *Store) call(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = encoded
	}

	failed := &storage.FallbackError{Op: op}
	for i, st := range s.strategies {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		resp, err := s.attempt(ctx, st, method, path, body)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		failed.Attempts = append(failed.Attempts, &storage.AttemptError{Credentials: string(st.creds), Err: err})
		if i < len(s.strategies)-1 {
			s.logger.Warn("request failed, retrying with next credential mode",
				"op", op,
				"credentials", st.creds,
				"next", s.strategies[i+1].creds,
				"err", err,
			)
		}
	}
	return nil, failed
}

func (s *Store) attempt(ctx context.Context, st strategy, method, path string, body []byte) ([]byte, error) {
	reqURL := s.baseURL.ResolveReference(&url.URL{Path: path})
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if st.token != "" {
		req.Header.Set("Authorization", "Bearer "+st.token)
	}

	if s.verbose {
		s.logger.Debug("api request", "method", method, "url", reqURL.String(), "credentials", st.creds, "body", truncate(body))
	}
	start := time.Now()
	resp, err := st.http.Do(req)
	if err != nil {
		return nil, &storage.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storage.TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if s.verbose {
		s.logger.Debug("api response",
			"method", method,
			"url", reqURL.String(),
			"status", resp.StatusCode,
			"duration", time.Since(start),
			"body", truncate(data),
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// statusError maps a non-2xx response to a validation or status error.
func statusError(status int, data []byte) error {
	var parsed errorBody
	decodeErr := json.Unmarshal(data, &parsed)
	if status == http.StatusUnprocessableEntity && decodeErr == nil && len(parsed.Errors) > 0 {
		return &storage.ValidationError{Message: parsed.Message, Fields: parsed.Errors}
	}
	msg := strings.TrimSpace(string(data))
	if decodeErr == nil && strings.TrimSpace(parsed.Message) != "" {
		msg = strings.TrimSpace(parsed.Message)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &storage.StatusError{Status: status, Body: msg}
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "…"
	}
	return string(b)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_base %q: %w", raw, errors.New("missing host"))
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
