package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hendrywilliam/tether/src/metrics"
)

const (
	APIVersion = 9
	UserAgent  = "DiscordBot (https://github.com/hendrywilliam/tether, 0.1.0)"

	maxResponseBody = 1 << 20
	maxErrorBody    = 6000
)

// Sleeper suspends the calling goroutine for d, returning early with the
// context error if ctx is done first.
type Sleeper func(ctx context.Context, d time.Duration) error

// REST issues authenticated requests against the versioned API and retries
// requests the server throttled. It holds no per-call state, so one value can
// serve concurrent callers.
type REST struct {
	httpClient *http.Client
	baseURL    *url.URL
	botToken   string
	maxRetries int
	sleep      Sleeper
	log        *slog.Logger
	metrics    *metrics.Metrics
}

type RESTOption func(*REST)

func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *REST) { r.httpClient = c }
}

func WithLogger(l *slog.Logger) RESTOption {
	return func(r *REST) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) RESTOption {
	return func(r *REST) { r.metrics = m }
}

// WithSleeper replaces the timer used while backing off from a 429.
func WithSleeper(s Sleeper) RESTOption {
	return func(r *REST) { r.sleep = s }
}

// NewREST builds a client for baseURL (e.g. https://discord.com). Throttled
// requests are attempted at most maxRetries times.
func NewREST(baseURL, botToken string, maxRetries int, opts ...RESTOption) (*REST, error) {
	if maxRetries < 1 {
		return nil, ErrInvalidRetryBudget
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base url: %w", err)
	}
	// Trailing slash so relative routes resolve under the prefix.
	u.Path = path.Join("/", u.Path, "api", fmt.Sprintf("v%d", APIVersion)) + "/"
	u.RawPath = ""
	r := &REST{
		httpClient: http.DefaultClient,
		baseURL:    u,
		botToken:   botToken,
		maxRetries: maxRetries,
		sleep:      sleepContext,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *REST) URL() string {
	return r.baseURL.String()
}

func (r *REST) Get(ctx context.Context, route string, out any) error {
	return r.Do(ctx, http.MethodGet, route, nil, out)
}

func (r *REST) Post(ctx context.Context, route string, body any, out any) error {
	return r.Do(ctx, http.MethodPost, route, body, out)
}

func (r *REST) Patch(ctx context.Context, route string, body any, out any) error {
	return r.Do(ctx, http.MethodPatch, route, body, out)
}

func (r *REST) Delete(ctx context.Context, route string, out any) error {
	return r.Do(ctx, http.MethodDelete, route, nil, out)
}

// Do sends method to route (relative to the API prefix, or absolute) and decodes
// a 200/201 body into out. out may be nil to discard the body.
//
// Only HTTP 429 is retried: the call sleeps for the server's retry_after and
// sends the identical request again. Transport failures and every other status
// are returned immediately.
func (r *REST) Do(ctx context.Context, method, route string, body any, out any) error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	target, err := r.baseURL.Parse(route)
	if err != nil {
		return fmt.Errorf("rest: invalid route %q: %w", route, err)
	}
	fullURL := target.String()

	var limit RateLimitResponse
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		res, err := r.send(ctx, method, fullURL, body)
		if err != nil {
			return err
		}
		r.metrics.ObserveRequest(method, res.StatusCode)

		switch res.StatusCode {
		case http.StatusOK, http.StatusCreated:
			return r.decodeSuccess(res, method, fullURL, out)
		case http.StatusTooManyRequests:
			limit, err = r.decodeRateLimit(res, method, fullURL)
			if err != nil {
				return err
			}
		default:
			return r.decodeFailure(res, method, fullURL)
		}

		wait := limit.Wait()
		r.metrics.ObserveRateLimit(method, limit.Global, wait)
		r.log.Warn("rate limited",
			"method", method,
			"url", fullURL,
			"retry_after", wait,
			"global", limit.Global,
			"attempt", attempt,
			"max_attempts", r.maxRetries)
		if attempt == r.maxRetries {
			break
		}
		if err := r.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rest: %s %s: backoff interrupted: %w", method, fullURL, err)
		}
	}
	return &RetryExhaustedError{
		Method:    method,
		URL:       fullURL,
		Attempts:  r.maxRetries,
		LastLimit: limit,
	}
}

// send builds a fresh request, re-encoding body, and performs it.
func (r *REST) send(ctx context.Context, method, fullURL string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("rest: encode request body: %w", err)
		}
		reader = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("rest: build request: %w", err)
	}
	// Mandatory headers.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Authorization", fmt.Sprintf("Bot %s", r.botToken))

	r.log.Debug("rest request", "method", method, "url", fullURL)
	res, err := r.httpClient.Do(req)
	if err != nil {
		r.metrics.ObserveRequest(method, 0)
		return nil, &TransportError{Method: method, URL: fullURL, Err: err}
	}
	return res, nil
}

func (r *REST) decodeSuccess(res *http.Response, method, fullURL string, out any) error {
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return &ResponseError{Method: method, URL: fullURL, StatusCode: res.StatusCode, Err: err}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &ResponseError{
			Method:     method,
			URL:        fullURL,
			StatusCode: res.StatusCode,
			Body:       excerpt(b),
			Err:        fmt.Errorf("decode response body: %w", err),
		}
	}
	return nil
}

func (r *REST) decodeRateLimit(res *http.Response, method, fullURL string) (RateLimitResponse, error) {
	defer res.Body.Close()
	var limit RateLimitResponse
	b, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err == nil {
		err = json.Unmarshal(b, &limit)
	}
	if err != nil {
		return limit, &ResponseError{
			Method:     method,
			URL:        fullURL,
			StatusCode: res.StatusCode,
			Body:       excerpt(b),
			Err:        fmt.Errorf("decode rate limit body: %w", err),
		}
	}
	return limit, nil
}

func (r *REST) decodeFailure(res *http.Response, method, fullURL string) error {
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	respErr := &ResponseError{
		Method:     method,
		URL:        fullURL,
		StatusCode: res.StatusCode,
		Body:       string(b),
	}
	apiErr := &ErrorHTTPResponse{}
	if json.Unmarshal(b, apiErr) == nil && apiErr.Message != "" {
		respErr.API = apiErr
	}
	r.log.Error("request failed", "method", method, "url", fullURL, "status", res.StatusCode, "body", respErr.Body)
	return respErr
}

func excerpt(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
