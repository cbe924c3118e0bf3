// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/crawler"
	"github.com/JakeFAU/legislature-crawler/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTimeout = 30 * time.Second
	DefaultDelay   = 500 * time.Millisecond
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Delay is the courtesy pause after every Fetch. Negative disables it.
	Delay time.Duration
	// MaxRetries bounds extra attempts after a transport error or 5xx.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Limiter gates every attempt when set.
	Limiter Limiter
}

// Limiter blocks until a request to url may be sent.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector. Calls are
// sequential: each one blocks until the response and the courtesy delay
// have both completed.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	pauser        pauseController
	retry         *exponentialRetryPolicy
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Retries revisit the same URL, and clones share the visited store.
	c.AllowURLRevisit = true
	// Error statuses are classified by the caller, so they must reach OnResponse.
	c.ParseHTTPErrorResponse = true
	// The historical member list is larger than colly's default cap.
	c.MaxBodySize = 0
	c.IgnoreRobotsTxt = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		pauser:        &timerPauseController{},
		retry:         newExponentialRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger:        logger.Named("fetcher"),
	}
}

// Fetch GETs request.URL and classifies the result. An error status or a
// transport failure yields OutcomeSoftFail on optional endpoints and an
// error wrapping crawler.ErrRequiredFetch on required ones.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	defer f.politenessDelay(ctx)

	start := time.Now()
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	for attempt := 0; ; attempt++ {
		if f.cfg.Limiter != nil {
			if err := f.cfg.Limiter.Wait(ctx, request.URL); err != nil {
				return crawler.FetchResponse{URL: request.URL, Attempts: attempt}, fmt.Errorf("fetch canceled: %w", err)
			}
		}
		result, fetchErr = f.fetchOnce(ctx, request.URL, start)
		result.Attempts = attempt + 1
		if ctx.Err() != nil {
			return result, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
		retryErr := fetchErr
		if retryErr == nil && result.StatusCode >= http.StatusInternalServerError {
			retryErr = fmt.Errorf("status %d", result.StatusCode)
		}
		if !f.retry.ShouldRetry(retryErr, attempt) {
			break
		}
		backoff := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(retryErr),
		)
		metrics.ObserveRetry()
		f.pauser.Pause(ctx, backoff)
	}
	result.Duration = time.Since(start)
	return f.classify(request, result, fetchErr)
}

func (f *Fetcher) classify(
	request crawler.FetchRequest,
	result crawler.FetchResponse,
	fetchErr error,
) (crawler.FetchResponse, error) {
	ok := fetchErr == nil && result.StatusCode >= 200 && result.StatusCode < 300
	switch {
	case ok:
		result.Outcome = crawler.OutcomeOK
	case request.Class == crawler.EndpointOptional:
		result.Outcome = crawler.OutcomeSoftFail
	default:
		result.Outcome = crawler.OutcomeFatal
	}
	metrics.ObserveFetch(request.URL, request.Class.String(), result.Outcome.String(), len(result.Body), result.Duration)

	fields := []zap.Field{
		zap.String("url", request.URL),
		zap.String("class", request.Class.String()),
		zap.String("outcome", result.Outcome.String()),
		zap.Int("status", result.StatusCode),
		zap.Int("attempts", result.Attempts),
		zap.Duration("duration", result.Duration),
	}
	switch result.Outcome {
	case crawler.OutcomeOK:
		f.logger.Debug("fetched", fields...)
		return result, nil
	case crawler.OutcomeSoftFail:
		f.logger.Debug("optional fetch failed", append(fields, zap.Error(fetchErr))...)
		result.Body = nil
		return result, nil
	default:
		f.logger.Warn("required fetch failed", append(fields, zap.Error(fetchErr))...)
		if fetchErr != nil {
			return result, fmt.Errorf("%w: %s: %w", crawler.ErrRequiredFetch, request.URL, fetchErr)
		}
		return result, fmt.Errorf("%w: %s: status %d", crawler.ErrRequiredFetch, request.URL, result.StatusCode)
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string, start time.Time) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return result, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) politenessDelay(ctx context.Context) {
	if f.cfg.Delay <= 0 {
		return
	}
	metrics.ObservePolitenessDelay(f.cfg.Delay)
	f.pauser.Pause(ctx, f.cfg.Delay)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
