// Package apiclient talks to the Beatpost REST backend.
//
// Every request carries the stored bearer credential when one exists. Every
// 401 response, whatever the call, clears the stored credential and runs the
// registered unauthorized handlers before the error is returned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL  = "http://localhost:8001/api"
	RequestIDHeader = "X-Request-ID"

	tracerName    = "github.com/siahsang/beatpost/internal/apiclient"
	maxErrorBytes = 64 << 10
)

// CredentialStore is the part of the session store the client needs.
type CredentialStore interface {
	Read(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// UnauthorizedHandler runs after a 401 response cleared the credential.
type UnauthorizedHandler func(ctx context.Context)

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

type Client struct {
	baseURL    *url.URL
	http       *http.Client
	store      CredentialStore
	log        *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	mutex          sync.RWMutex
	onUnauthorized []UnauthorizedHandler
}

func New(store CredentialStore, opts Options) (*Client, error) {
	rawURL := opts.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, xerrors.Newf("parse api base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, xerrors.Newf("api base url %q must be http or https", rawURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	propagator := opts.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	return &Client{
		baseURL:    baseURL,
		http:       httpClient,
		store:      store,
		log:        log,
		tracer:     tp.Tracer(tracerName),
		propagator: propagator,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// OnUnauthorized registers h to run on every 401 response.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, h)
}

type requestBody interface {
	contentType() string
	reader() (io.Reader, error)
}

type jsonBody struct {
	value any
}

func (b jsonBody) contentType() string {
	return "application/json"
}

func (b jsonBody) reader() (io.Reader, error) {
	js, err := json.Marshal(b.value)
	if err != nil {
		return nil, xerrors.Newf("encode request body: %w", err)
	}
	return bytes.NewReader(js), nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// segment escapes one user-supplied path segment.
func segment(value string) string {
	return url.PathEscape(value)
}

// do sends one request and decodes a 2xx JSON body into out, when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body requestBody, out any) error {
	target := c.resolve(path, query)
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLFull(target),
		))
	defer span.End()

	var reader io.Reader
	if body != nil {
		r, err := body.reader()
		if err != nil {
			span.RecordError(err)
			return err
		}
		reader = r
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		span.RecordError(err)
		return xerrors.Newf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", body.contentType())
	}

	credential, ok, err := c.store.Read(ctx)
	if err != nil {
		c.log.Warn("reading stored credential failed, sending request without it",
			slog.String("stack", xerrors.Sprint(err)))
	} else if ok {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.log.Debug("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return newNetworkError(err)
	}
	defer res.Body.Close()

	span.SetAttributes(semconv.HTTPResponseStatusCode(res.StatusCode))
	c.log.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", res.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
		apiErr := newResponseError(res.StatusCode, payload)
		span.SetStatus(codes.Error, apiErr.Message)

		if res.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		span.RecordError(err)
		return xerrors.Newf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	// The credential must be gone even if the caller already gave up.
	ctx = context.WithoutCancel(ctx)
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error("clearing rejected credential failed", slog.String("stack", xerrors.Sprint(err)))
	}

	c.mutex.RLock()
	handlers := make([]UnauthorizedHandler, len(c.onUnauthorized))
	copy(handlers, c.onUnauthorized)
	c.mutex.RUnlock()

	for _, h := range handlers {
		h(ctx)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body requestBody
	if in != nil {
		body = jsonBody{value: in}
	}
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) putJSON(ctx context.Context, path string, in, out any) error {
	var body requestBody
	if in != nil {
		body = jsonBody{value: in}
	}
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}
