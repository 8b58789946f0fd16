// Package fetch retrieves raw page content with two transports:
// - primary: a resty HTTP client with retry on server errors, a rotating
//   user-agent pool, a request-rate ceiling and randomized delays
// - fallback: a headless browser rendering the same URL
// Rate limiting (429), blocking (403/406) and unusable-content responses are
// classified into tagged failures instead of silent empty results.
package fetch

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"context"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"go-putusan-scraper/internal/config"
	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/model"
)

// Hint selects the transport for one fetch.
type Hint string

const (
	HintAuto    Hint = "auto"    // primary, browser on failure
	HintPrimary Hint = "primary" // primary only
	HintBrowser Hint = "browser" // browser only
)

// Transport name keys used in the stats tally.
const (
	transportHTTP    = "http"
	transportBrowser = "browser"
)

// Transport abstracts a way of retrieving page content.
type Transport interface {
	Name() string
	Get(ctx context.Context, url string) (string, error)
	Close() error
}

// Options are the fetcher construction parameters.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	DelayMin          time.Duration
	DelayMax          time.Duration
	RateLimitDelayMin time.Duration
	RateLimitDelayMax time.Duration
	UserAgents        []string
	MinContentLength  int
	BlockMarkers      []string
	RequestsPerSecond float64

	Browser BrowserOptions
	// BrowserFactory overrides the default headless-browser transport.
	BrowserFactory func() (Transport, error)
}

// OptionsFrom maps the application config onto fetcher options.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.MaxRetries,
		DelayMin:          cfg.Delay.MinDuration(),
		DelayMax:          cfg.Delay.MaxDuration(),
		RateLimitDelayMin: cfg.RateLimitDelay.MinDuration(),
		RateLimitDelayMax: cfg.RateLimitDelay.MaxDuration(),
		UserAgents:        cfg.UserAgents,
		MinContentLength:  cfg.MinContentLength,
		BlockMarkers:      cfg.BlockMarkers,
		Browser: BrowserOptions{
			Headless:        cfg.Browser.Headless,
			WindowWidth:     cfg.Browser.WindowWidth,
			WindowHeight:    cfg.Browser.WindowHeight,
			PageLoadTimeout: time.Duration(cfg.Browser.PageLoadTimeout) * time.Second,
			SettleMin:       cfg.Browser.Settle.MinDuration(),
			SettleMax:       cfg.Browser.Settle.MaxDuration(),
		},
	}
}

// Fetcher owns the HTTP client, the lazy browser session and the request
// counters. It is not safe for concurrent use; one job owns one Fetcher.
type Fetcher struct {
	opts    Options
	client  *resty.Client
	browser Transport
	rng     *rand.Rand
	ua      string

	total     int
	success   int
	failed    int
	transport map[string]int
}

// New creates a Fetcher. The browser transport is started lazily, on the
// first fetch that needs it.
func New(opts Options) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.UserAgents) == 0 {
		return nil, errors.New("at least one user agent required")
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	f := &Fetcher{
		opts:      opts,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		transport: make(map[string]int),
	}
	f.ua = opts.UserAgents[f.rng.Intn(len(opts.UserAgents))]

	c := resty.New()
	c.SetTimeout(opts.Timeout)
	c.SetRetryCount(opts.MaxRetries)
	c.SetRetryWaitTime(1 * time.Second)
	c.SetRetryMaxWaitTime(10 * time.Second)
	// 429 is handled explicitly in handleRateLimit, not by resty.
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return false
		}
		switch r.StatusCode() {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	})
	c.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	c.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "id-ID,id;q=0.9,en;q=0.8",
	})
	c.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(c.GetClient().Transport)

	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 2)
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if err := limiter.Wait(req.Context()); err != nil {
			return err
		}
		req.SetHeader("User-Agent", f.ua)
		return nil
	})
	f.client = c
	return f, nil
}

// Fetch retrieves url through the hinted transport(s). Every invocation
// counts toward the request totals regardless of outcome.
func (f *Fetcher) Fetch(ctx context.Context, url string, hint Hint) (string, error) {
	f.total++
	var primaryErr error
	if hint == HintAuto || hint == HintPrimary || hint == "" {
		content, err := f.primaryGet(ctx, url)
		if err == nil {
			f.success++
			f.transport[transportHTTP]++
			return content, nil
		}
		primaryErr = err
		if hint == HintPrimary || ctx.Err() != nil {
			f.failed++
			return "", err
		}
		logx.Warnf("primary transport failed for %s: %v", url, err)
	}

	content, err := f.browserGet(ctx, url)
	if err == nil {
		f.success++
		f.transport[transportBrowser]++
		return content, nil
	}
	f.failed++
	if hint == HintBrowser {
		return "", err
	}
	return "", &Error{Reason: ReasonExhausted, URL: url, Err: errors.Join(primaryErr, err)}
}

// primaryGet performs one HTTP fetch with the resty client.
func (f *Fetcher) primaryGet(ctx context.Context, url string) (string, error) {
	if err := f.sleepRandom(ctx, f.opts.DelayMin, f.opts.DelayMax); err != nil {
		return "", err
	}
	// occasional mid-session rotation
	if f.rng.Float64() < 0.1 {
		f.rotateUA()
	}
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", classifyTransportErr(url, err)
	}
	return f.handleResponse(ctx, url, resp)
}

// handleResponse classifies a non-transport-level outcome. Only called with
// responses outside an active rate-limit retry for status 429.
func (f *Fetcher) handleResponse(ctx context.Context, url string, resp *resty.Response) (string, error) {
	code := resp.StatusCode()
	switch {
	case code == http.StatusOK:
		body := resp.String()
		if err := f.validate(body); err != nil {
			return "", &Error{Reason: ReasonValidation, URL: url, Err: err}
		}
		return body, nil
	case code == http.StatusTooManyRequests:
		return f.handleRateLimit(ctx, url, resp)
	case code == http.StatusForbidden || code == http.StatusNotAcceptable:
		return "", &Error{Reason: ReasonBlocked, URL: url, Err: fmt.Errorf("http status %d", code)}
	case code >= 500:
		return "", &Error{Reason: ReasonServer, URL: url, Err: fmt.Errorf("http status %d", code)}
	default:
		return "", &Error{Reason: ReasonValidation, URL: url, Err: fmt.Errorf("unexpected http status %d", code)}
	}
}

// handleRateLimit honors Retry-After exactly when present, otherwise backs
// off exponentially across three attempts, rotating the user agent between
// attempts.
func (f *Fetcher) handleRateLimit(ctx context.Context, url string, resp *resty.Response) (string, error) {
	logx.Warnf("rate limited for %s", url)
	if ra := strings.TrimSpace(resp.Header().Get("Retry-After")); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			logx.Infof("Retry-After header found, waiting %d seconds", secs)
			if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
				return "", err
			}
			retry, err := f.client.R().SetContext(ctx).Get(url)
			if err != nil {
				return "", classifyTransportErr(url, err)
			}
			if retry.StatusCode() != http.StatusTooManyRequests {
				return f.handleResponse(ctx, url, retry)
			}
		}
	}
	for attempt := 0; attempt < 3; attempt++ {
		factor := time.Duration(1 << attempt)
		if err := f.sleepRandom(ctx, f.opts.RateLimitDelayMin*factor, f.opts.RateLimitDelayMax*factor); err != nil {
			return "", err
		}
		f.rotateUA()
		retry, err := f.client.R().SetContext(ctx).Get(url)
		if err != nil {
			logx.Warnf("rate limit retry %d failed for %s: %v", attempt+1, url, err)
			continue
		}
		if retry.StatusCode() != http.StatusTooManyRequests {
			return f.handleResponse(ctx, url, retry)
		}
	}
	return "", &Error{Reason: ReasonRateLimited, URL: url, Err: errors.New("backoff exhausted")}
}

// browserGet renders the URL with the fallback transport, starting it on
// first use.
func (f *Fetcher) browserGet(ctx context.Context, url string) (string, error) {
	if f.browser == nil {
		factory := f.opts.BrowserFactory
		if factory == nil {
			opts := f.opts.Browser
			factory = func() (Transport, error) { return newChromeTransport(opts, f.ua) }
		}
		b, err := factory()
		if err != nil {
			return "", &Error{Reason: ReasonConnection, URL: url, Err: fmt.Errorf("start browser: %w", err)}
		}
		f.browser = b
		logx.Infof("browser transport started")
	}
	html, err := f.browser.Get(ctx, url)
	if err != nil {
		return "", classifyTransportErr(url, err)
	}
	if err := f.validate(html); err != nil {
		return "", &Error{Reason: ReasonValidation, URL: url, Err: err}
	}
	return html, nil
}

// validate rejects content that is usable at the HTTP level but not at the
// markup level: too short, carrying a block marker, or with no structure.
func (f *Fetcher) validate(body string) error {
	if f.opts.MinContentLength > 0 && len(body) < f.opts.MinContentLength {
		return fmt.Errorf("content too short: %d bytes", len(body))
	}
	lower := strings.ToLower(body)
	for _, m := range f.opts.BlockMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return fmt.Errorf("block marker %q present", m)
		}
	}
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<body") && !strings.Contains(lower, "<div") {
		return errors.New("no structural markup found")
	}
	return nil
}

// Stream issues a plain GET for binary payloads, bypassing body buffering.
// The caller must close the response body.
func (f *Fetcher) Stream(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	resp, err := f.client.GetClient().Do(req)
	if err != nil {
		return nil, classifyTransportErr(url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &Error{Reason: ReasonServer, URL: url, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	return resp, nil
}

// Stats returns the request counters accumulated so far.
func (f *Fetcher) Stats() model.Stats {
	used := make(map[string]int, len(f.transport))
	for k, v := range f.transport {
		used[k] = v
	}
	st := model.Stats{
		TotalRequests:      f.total,
		SuccessfulRequests: f.success,
		FailedRequests:     f.failed,
		TransportUsed:      used,
	}
	if f.total > 0 {
		st.SuccessRate = float64(f.success) / float64(f.total) * 100
	}
	return st
}

// Close releases network resources and stops any active browser session.
func (f *Fetcher) Close() error {
	f.client.GetClient().CloseIdleConnections()
	if f.browser != nil {
		err := f.browser.Close()
		f.browser = nil
		return err
	}
	return nil
}

func (f *Fetcher) rotateUA() {
	f.ua = f.opts.UserAgents[f.rng.Intn(len(f.opts.UserAgents))]
}

// sleepRandom pauses for a uniform duration in [min, max].
func (f *Fetcher) sleepRandom(ctx context.Context, min, max time.Duration) error {
	if max <= 0 {
		return nil
	}
	d := min
	if max > min {
		d = min + time.Duration(f.rng.Int63n(int64(max-min)))
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
