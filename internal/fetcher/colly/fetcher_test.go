package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/legislature-crawler/internal/crawler"
)

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

func newTestFetcher(cfg Config) (*Fetcher, *recordingPauser) {
	f := New(cfg, nil)
	p := &recordingPauser{}
	f.pauser = p
	return f, p
}

func TestFetchOK(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"SessionId":68}]`))
	}))
	defer srv.Close()

	f, pauser := newTestFetcher(Config{UserAgent: "legislature-test", Delay: 500 * time.Millisecond})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/api/Sessions"})
	require.NoError(t, err)

	assert.Equal(t, crawler.OutcomeOK, resp.Outcome)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"SessionId":68}]`, string(resp.Body))
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "legislature-test", gotUA.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, pauser.recorded())
}

func TestFetchOptionalSoftFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f, pauser := newTestFetcher(Config{})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:   srv.URL + "/api/Bills/Audio/1",
		Class: crawler.EndpointOptional,
	})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeSoftFail, resp.Outcome)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Nil(t, resp.Body)
	assert.Equal(t, []time.Duration{DefaultDelay}, pauser.recorded(), "delay follows failed calls too")
}

func TestFetchRequiredFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/api/Bills/1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crawler.ErrRequiredFetch))
	assert.Equal(t, crawler.OutcomeFatal, resp.Outcome)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL + "/api/Votes/1"
	srv.Close()

	f, _ := newTestFetcher(Config{Timeout: time.Second})

	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: deadURL, Class: crawler.EndpointOptional})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeSoftFail, resp.Outcome)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: deadURL, Class: crawler.EndpointRequired})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crawler.ErrRequiredFetch))
}

func TestFetchNoRetryByDefault(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f, pauser := newTestFetcher(Config{
		MaxRetries:     2,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     40 * time.Millisecond,
		Delay:          -1,
	})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeOK, resp.Outcome)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), hits.Load())

	backoffs := pauser.recorded()
	require.Len(t, backoffs, 2, "two backoffs and no courtesy delay")
	for _, b := range backoffs {
		assert.LessOrEqual(t, b, 40*time.Millisecond)
	}
}

type countingLimiter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (l *countingLimiter) Wait(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return l.err
}

func TestFetchWaitsOnLimiterPerAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f, _ := newTestFetcher(Config{MaxRetries: 1, Delay: -1, Limiter: limiter})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeOK, resp.Outcome)
	assert.Equal(t, []string{srv.URL, srv.URL}, limiter.urls)
}

func TestFetchLimiterError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{Delay: -1, Limiter: &countingLimiter{err: context.DeadlineExceeded}})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL, Class: crawler.EndpointOptional})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, hits.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Config{MaxRetries: 3})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL, Class: crawler.EndpointOptional})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeSoftFail, resp.Outcome)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := newTestFetcher(Config{})
	_, err := f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, crawler.ErrRequiredFetch))
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
	assert.Equal(t, DefaultDelay, f.cfg.Delay)
	assert.True(t, f.baseCollector.AllowURLRevisit)
	assert.True(t, f.baseCollector.ParseHTTPErrorResponse)

	collector := New(Config{UserAgent: "agent"}, nil).buildCollector()
	assert.Equal(t, "agent", collector.UserAgent)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://sdlegislature.gov/api/Sessions")},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
