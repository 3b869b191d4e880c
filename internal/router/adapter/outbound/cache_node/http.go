package cache_node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
	"github.com/anthanhphan/go-distributed-cache/pkg/resilience"
)

// ErrShuttingDown is returned for requests started after Shutdown.
var ErrShuttingDown = errors.New("cache node transport is shutting down")

type Config struct {
	Scheme              string
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration
	MaxIdleConnsPerHost int
	FailureThreshold    int
	OpenTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		Scheme:              "http",
		ConnectTimeout:      2 * time.Second,
		RequestTimeout:      5 * time.Second,
		MaxIdleConnsPerHost: 64,
		FailureThreshold:    5,
		OpenTimeout:         5 * time.Second,
	}
}

// HTTPAdapter implements port.NodeTransport over HTTP with one circuit
// breaker per node.
type HTTPAdapter struct {
	cfg       Config
	client    *http.Client
	transport *http.Transport

	breakers *resilience.BreakerSet

	mu       sync.RWMutex
	closing  bool
	inflight sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc
}

// Ensure HTTPAdapter implements port.NodeTransport
var _ port.NodeTransport = (*HTTPAdapter)(nil)

func NewHTTPAdapter(cfg Config) *HTTPAdapter {
	def := DefaultConfig()
	if cfg.Scheme == "" {
		cfg.Scheme = def.Scheme
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	breakers := resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
		FailureThreshold:  cfg.FailureThreshold,
		SuccessThreshold:  1,
		OpenTimeout:       cfg.OpenTimeout,
		HalfOpenMaxFlight: 1,
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	return &HTTPAdapter{
		cfg:       cfg,
		client:    &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		transport: transport,
		breakers:  breakers,
		baseCtx:   baseCtx,
		cancelAll: cancel,
	}
}

func (a *HTTPAdapter) Fetch(ctx context.Context, node, key string) (*port.Response, error) {
	return a.do(ctx, http.MethodGet, node, key, nil)
}

func (a *HTTPAdapter) Store(ctx context.Context, node, key string, value []byte) (*port.Response, error) {
	return a.do(ctx, http.MethodPost, node, key, value)
}

func (a *HTTPAdapter) Remove(ctx context.Context, node, key string) (*port.Response, error) {
	return a.do(ctx, http.MethodDelete, node, key, nil)
}

// Forget drops the breaker of a node that left the cluster.
func (a *HTTPAdapter) Forget(node string) {
	a.breakers.Forget(node)
}

// Shutdown rejects new requests and waits for in-flight ones. When ctx ends
// first, the remaining requests are cancelled and ctx's error is returned.
func (a *HTTPAdapter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.cancelAll()
		return nil
	case <-ctx.Done():
		a.cancelAll()
		<-done
		return ctx.Err()
	}
}

func (a *HTTPAdapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

func (a *HTTPAdapter) do(ctx context.Context, method, node, key string, body []byte) (*port.Response, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.inflight.Done()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(a.baseCtx, cancel)
	defer stop()

	resp, err := resilience.Call(reqCtx, a.breakers.Get(node), func(execCtx context.Context) (*port.Response, error) {
		return a.send(execCtx, method, node, key, body)
	}, judgeResponse)
	if err != nil {
		a.logFailure(method, node, err)
		return nil, err
	}
	return resp, nil
}

func (a *HTTPAdapter) enter() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closing {
		return ErrShuttingDown
	}
	a.inflight.Add(1)
	return nil
}

func (a *HTTPAdapter) send(ctx context.Context, method, node, key string, body []byte) (*port.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.keyURL(node, key), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, normalizeErr(ctx, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, normalizeErr(ctx, fmt.Errorf("read body: %w", err))
	}

	return &port.Response{
		Outcome:    classify(httpResp.StatusCode),
		StatusCode: httpResp.StatusCode,
		Body:       data,
	}, nil
}

func (a *HTTPAdapter) keyURL(node, key string) string {
	return a.cfg.Scheme + "://" + node + "/" + url.PathEscape(key)
}

func (a *HTTPAdapter) logFailure(method, node string, err error) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		logger.Warnw("Cache node request short-circuited", "method", method, "node", node, "error", err.Error())
	case errors.Is(err, context.Canceled):
	default:
		logger.Warnw("Cache node request failed", "method", method, "node", node, "error", err.Error())
	}
}

func classify(status int) port.Outcome {
	switch {
	case status >= 200 && status < 300:
		return port.OutcomeSuccess
	case status == http.StatusNotFound:
		return port.OutcomeNotFound
	default:
		return port.OutcomeFailure
	}
}

// judgeResponse counts transport failures and 5xx answers against the node.
// A 4xx answer is the caller's mistake, and a call whose context ended first
// (caller cancel or deadline, transport shutdown) says nothing about the node.
func judgeResponse(ctx context.Context, resp *port.Response, err error) resilience.Verdict {
	if err != nil {
		return resilience.DefaultClassifier(ctx, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resilience.VerdictFailure
	}
	return resilience.VerdictSuccess
}

// normalizeErr reports caller cancellation as context.Canceled.
func normalizeErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return err
}
