package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// validBody is long enough and structured enough to pass validation.
var validBody = "<html><body><div>" + strings.Repeat("putusan ", 100) + "</div></body></html>"

func testOptions() Options {
	return Options{
		Timeout:           3 * time.Second,
		MaxRetries:        2,
		UserAgents:        []string{"test-agent/1.0", "test-agent/2.0"},
		MinContentLength:  50,
		RequestsPerSecond: 100,
	}
}

type stubBrowser struct {
	body   string
	err    error
	calls  int32
	closed bool
}

func (b *stubBrowser) Name() string { return "browser" }
func (b *stubBrowser) Get(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&b.calls, 1)
	return b.body, b.err
}
func (b *stubBrowser) Close() error { b.closed = true; return nil }

func TestFetch_PrimarySuccess(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, validBody)
	}))
	defer srv.Close()

	f, err := New(testOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	body, err := f.Fetch(context.Background(), srv.URL, HintAuto)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != validBody {
		t.Fatalf("body mismatch: got %d bytes", len(body))
	}
	if !strings.HasPrefix(gotUA, "test-agent/") {
		t.Fatalf("user-agent = %q, want pool member", gotUA)
	}
	st := f.Stats()
	if st.TotalRequests != 1 || st.SuccessfulRequests != 1 || st.FailedRequests != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if st.TransportUsed["http"] != 1 {
		t.Fatalf("transport tally = %v, want http=1", st.TransportUsed)
	}
}

func TestFetch_RetryAfterHonoredWithoutFallback(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, validBody)
	}))
	defer srv.Close()

	browser := &stubBrowser{body: validBody}
	opts := testOptions()
	opts.BrowserFactory = func() (Transport, error) { return browser, nil }

	f, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	start := time.Now()
	body, err := f.Fetch(context.Background(), srv.URL, HintAuto)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("returned after %v, want >= 1s (Retry-After)", elapsed)
	}
	if body != validBody {
		t.Fatalf("body mismatch")
	}
	// rate limiting is resolved on the primary transport, never escalated
	if n := atomic.LoadInt32(&browser.calls); n != 0 {
		t.Fatalf("browser used %d times, want 0", n)
	}
	if st := f.Stats(); st.TransportUsed["http"] != 1 {
		t.Fatalf("transport tally = %v", st.TransportUsed)
	}
}

func TestFetch_RateLimitBackoffExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	opts := testOptions()
	f, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL, HintPrimary)
	if ReasonOf(err) != ReasonRateLimited {
		t.Fatalf("reason = %q, want %q (err=%v)", ReasonOf(err), ReasonRateLimited, err)
	}
	if st := f.Stats(); st.FailedRequests != 1 {
		t.Fatalf("failed = %d, want 1", st.FailedRequests)
	}
}

func TestFetch_BlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f, err := New(testOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL, HintPrimary)
	if ReasonOf(err) != ReasonBlocked {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonBlocked)
	}
}

func TestFetch_RetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, validBody)
	}))
	defer srv.Close()

	f, err := New(testOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	if _, err := f.Fetch(context.Background(), srv.URL, HintPrimary); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestFetch_ValidationRejectsShortBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>tiny</html>")
	}))
	defer srv.Close()

	f, err := New(testOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL, HintPrimary)
	if ReasonOf(err) != ReasonValidation {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonValidation)
	}
}

func TestFetch_ValidationRejectsBlockMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><div>Access Denied. "+strings.Repeat("x ", 100)+"</div></body></html>")
	}))
	defer srv.Close()

	opts := testOptions()
	opts.BlockMarkers = []string{"access denied"}
	f, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL, HintPrimary)
	if ReasonOf(err) != ReasonValidation {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonValidation)
	}
}

func TestFetch_BrowserFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	browser := &stubBrowser{body: validBody}
	opts := testOptions()
	opts.BrowserFactory = func() (Transport, error) { return browser, nil }
	f, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	body, err := f.Fetch(context.Background(), srv.URL, HintAuto)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != validBody {
		t.Fatalf("body mismatch")
	}
	if n := atomic.LoadInt32(&browser.calls); n != 1 {
		t.Fatalf("browser calls = %d, want 1", n)
	}
	if st := f.Stats(); st.TransportUsed["browser"] != 1 {
		t.Fatalf("transport tally = %v", st.TransportUsed)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !browser.closed {
		t.Fatalf("browser not closed")
	}
}

func TestFetch_ExhaustedJoinsBothErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	browserErr := errors.New("render failed")
	opts := testOptions()
	opts.BrowserFactory = func() (Transport, error) {
		return &stubBrowser{err: browserErr}, nil
	}
	f, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), srv.URL, HintAuto)
	if ReasonOf(err) != ReasonExhausted {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonExhausted)
	}
	if !errors.Is(err, browserErr) {
		t.Fatalf("exhausted error should wrap the browser error: %v", err)
	}
	if st := f.Stats(); st.FailedRequests != 1 || st.SuccessfulRequests != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestFetch_Stream(t *testing.T) {
	payload := []byte("%PDF-1.4 binary payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f, err := New(testOptions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	resp, err := f.Stream(context.Background(), srv.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	resp.Body.Close()

	if _, err := f.Stream(context.Background(), srv.URL+"/missing"); ReasonOf(err) != ReasonServer {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonServer)
	}
}

func TestValidate(t *testing.T) {
	f := &Fetcher{opts: Options{MinContentLength: 10, BlockMarkers: []string{"cloudflare"}}}
	if err := f.validate("<div>" + strings.Repeat("a", 20) + "</div>"); err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}
	if err := f.validate("short"); err == nil {
		t.Fatalf("short body accepted")
	}
	if err := f.validate("<div>checking your browser Cloudflare</div>"); err == nil {
		t.Fatalf("block marker accepted")
	}
	if err := f.validate(strings.Repeat("plain text only ", 10)); err == nil {
		t.Fatalf("structureless body accepted")
	}
}
