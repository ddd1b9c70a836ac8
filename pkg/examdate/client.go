// Package examdate resolves exam identifiers to visit dates through the
// clinic's external exam-date lookup service.
package examdate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cellcare/cellcare_backend/config"
	"github.com/cellcare/cellcare_backend/pkg/observability"
)

const (
	lookupPath  = "/get_tjrq"
	successCode = 200

	defaultBatchConcurrency = 8
	meterScope              = "github.com/cellcare/cellcare_backend/pkg/examdate"
)

// Config holds the lookup endpoint and retry policy. All fields except
// BatchConcurrency are required.
type Config struct {
	BaseURL string
	Host    string
	Port    int

	Timeout          time.Duration
	RetryCount       int // total attempts per lookup
	RetryDelay       time.Duration
	BatchConcurrency int
}

// FromCentralConfig converts config.ExamDateConfig to package Config.
func FromCentralConfig(c config.ExamDateConfig) Config {
	return Config{
		BaseURL:          c.BaseURL,
		Host:             c.Host,
		Port:             c.Port,
		Timeout:          time.Duration(c.TimeoutMs) * time.Millisecond,
		RetryCount:       c.RetryCount,
		RetryDelay:       time.Duration(c.RetryDelayMs) * time.Millisecond,
		BatchConcurrency: c.BatchConcurrency,
	}
}

// Endpoint returns BaseURL, or http://Host:Port when only the pair is set.
func (c Config) Endpoint() (string, error) {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/"), nil
	}
	if c.Host != "" && c.Port > 0 {
		return "http://" + c.Host + ":" + strconv.Itoa(c.Port), nil
	}
	return "", ErrMissingEndpoint
}

type lookupRequest struct {
	StudyID string `json:"studyId"`
}

type lookupResponse struct {
	Code int    `json:"code"`
	Data string `json:"data"`
	Msg  string `json:"msg"`
}

// Client talks to the exam-date lookup service.
type Client struct {
	http             *resty.Client
	retryCount       int
	retryDelay       time.Duration
	batchConcurrency int

	attempts metric.Int64Counter
	failures metric.Int64Counter
}

// New validates cfg and builds a client. A missing endpoint is an error:
// there is no default lookup service.
func New(cfg Config) (*Client, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 || cfg.RetryCount < 1 || cfg.RetryDelay <= 0 {
		return nil, fmt.Errorf("%w: timeout, retry count and retry delay must be positive", ErrInvalidConfig)
	}

	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(cfg.Timeout).
		SetLogger(restyLogger{}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:             httpClient,
		retryCount:       cfg.RetryCount,
		retryDelay:       cfg.RetryDelay,
		batchConcurrency: concurrency,
		attempts:         observability.Counter(meterScope, "examdate.lookup.attempts", "Exam-date lookup requests sent"),
		failures:         observability.Counter(meterScope, "examdate.lookup.failures", "Exam-date lookups that resolved to nothing"),
	}, nil
}

// NewFromCentral creates a client from the central configuration.
func NewFromCentral(c config.ExamDateConfig) (*Client, error) {
	return New(FromCentralConfig(c))
}

// ResolveDate returns the canonical "YYYY-MM-DD HH:mm:ss" visit date for examID.
// Network errors, timeouts and 5xx responses are retried up to the configured
// attempt count with a fixed delay; every failure ends in ("", false).
func (c *Client) ResolveDate(ctx context.Context, examID string) (string, bool) {
	examID = strings.TrimSpace(examID)
	if examID == "" {
		return "", false
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		c.attempts.Add(ctx, 1)
		date, err := c.lookup(ctx, examID)
		if err != nil {
			slog.Warn("exam date lookup failed",
				"exam_id", examID,
				"attempt", attempt,
				"max_attempts", c.retryCount,
				"err", err,
			)
		}
		return date, err
	}

	date, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(uint(c.retryCount)),
	)
	if err != nil {
		c.failures.Add(ctx, 1)
		slog.Info("exam date unresolved", "exam_id", examID, "attempts", attempt, "err", err)
		return "", false
	}
	return date, true
}

// ResolveDatesBatch resolves ids concurrently. Results are keyed by the
// caller's strings as given; ids that differ only in surrounding whitespace
// share one lookup. Ids that fail to resolve are absent from the result; the
// batch itself never fails.
func (c *Client) ResolveDatesBatch(ctx context.Context, examIDs []string) map[string]string {
	callers := make(map[string][]string, len(examIDs))
	var order []string
	for _, raw := range examIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, seen := callers[id]; !seen {
			order = append(order, id)
		}
		callers[id] = append(callers[id], raw)
	}

	result := make(map[string]string, len(examIDs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.batchConcurrency)
	for _, id := range order {
		g.Go(func() error {
			if date, ok := c.ResolveDate(ctx, id); ok {
				mu.Lock()
				for _, raw := range callers[id] {
					result[raw] = date
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// lookup performs one request. Errors wrapped in backoff.Permanent are
// authoritative answers from the service and are not retried.
func (c *Client) lookup(ctx context.Context, examID string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(lookupRequest{StudyID: examID}).
		Post(lookupPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if retryableStatus(resp.StatusCode()) {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if resp.IsError() {
		return "", backoff.Permanent(fmt.Errorf("%w: status %d", ErrLookupRejected, resp.StatusCode()))
	}

	var envelope lookupResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if envelope.Code != successCode {
		return "", backoff.Permanent(fmt.Errorf("%w: code %d (%s)", ErrLookupRejected, envelope.Code, envelope.Msg))
	}

	date, ok := NormalizeForStorage(envelope.Data)
	if !ok {
		return "", backoff.Permanent(fmt.Errorf("%w: date %q", ErrMalformedResponse, envelope.Data))
	}
	return date, nil
}

// retryableStatus reports HTTP statuses that signal a transient condition.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}

// restyLogger routes resty's internal logging through slog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	slog.Debug("examdate http: " + fmt.Sprintf(format, v...))
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	slog.Debug("examdate http: " + fmt.Sprintf(format, v...))
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	slog.Debug("examdate http: " + fmt.Sprintf(format, v...))
}
