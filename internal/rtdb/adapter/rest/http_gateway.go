package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/contextkeys"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultAPIPrefix = "/api"
	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 32 << 20
	// maxErrorBody bounds how much of an error body is kept for the message.
	maxErrorBody = 64 << 10
)

// Config configures an HTTPGateway.
type Config struct {
	BaseURL   string
	APIPrefix string
	Timeout   time.Duration
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	RateBurst int
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     logger.Logger
}

// HTTPGateway is the RestGateway over HTTP/JSON.
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	log        logger.Logger
}

var _ repository.RestGateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway for the document store at cfg.BaseURL.
func NewHTTPGateway(cfg Config) (*HTTPGateway, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewValidationError("invalid document store base URL").WithDetail("base_url", cfg.BaseURL)
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = defaultAPIPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPGateway{
		httpClient: client,
		baseURL:    strings.TrimRight(base.String(), "/") + prefix,
		limiter:    limiter,
		log:        logger.OrNop(cfg.Logger).WithComponent("http_gateway"),
	}, nil
}

func (g *HTTPGateway) ListCollection(ctx context.Context, collection string, params url.Values) (jsonvalue.Value, error) {
	body, err := g.do(ctx, http.MethodGet, g.target(collection, "", params), nil)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	list, err := jsonvalue.Parse(body)
	if err != nil {
		return jsonvalue.Value{}, errors.NewTransportError(http.StatusOK, "malformed collection listing").WithCause(err)
	}
	if list.Kind() != jsonvalue.Array && !list.IsObject() {
		return jsonvalue.Value{}, errors.NewTransportError(http.StatusOK, "collection listing is not an array")
	}
	return list, nil
}

func (g *HTTPGateway) GetDocument(ctx context.Context, collection, id string, params url.Values) (jsonvalue.Value, error) {
	body, err := g.do(ctx, http.MethodGet, g.target(collection, id, params), nil)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	doc, err := jsonvalue.Parse(body)
	if err != nil {
		return jsonvalue.Value{}, errors.NewTransportError(http.StatusOK, "malformed document").WithCause(err)
	}
	return doc, nil
}

func (g *HTTPGateway) PutDocument(ctx context.Context, collection, id string, doc jsonvalue.Value) error {
	_, err := g.send(ctx, http.MethodPut, collection, id, doc)
	return err
}

func (g *HTTPGateway) PatchDocument(ctx context.Context, collection, id string, partial jsonvalue.Value) error {
	_, err := g.send(ctx, http.MethodPatch, collection, id, partial)
	return err
}

func (g *HTTPGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := g.do(ctx, http.MethodDelete, g.target(collection, id, nil), nil)
	return err
}

func (g *HTTPGateway) send(ctx context.Context, method, collection, id string, v jsonvalue.Value) ([]byte, error) {
	payload, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return g.do(ctx, method, g.target(collection, id, nil), payload)
}

// target builds /api/<collection>[/<id>][?params] with escaped segments.
func (g *HTTPGateway) target(collection, id string, params url.Values) string {
	var b strings.Builder
	b.WriteString(g.baseURL)
	b.WriteByte('/')
	b.WriteString(url.PathEscape(collection))
	if id != "" {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(id))
	}
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}

// do performs one request. 404 maps to a not-found error, any other status of
// 400 or above to a transport error carrying that status, and network failures
// to a transport error with status 0.
func (g *HTTPGateway) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, errors.NewTransportError(0, "rate limiter wait aborted").WithCause(err)
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(0, method+" request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.NewNotFoundError(req.URL.Path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := errorMessage(raw, resp.Status)
		g.log.WithContext(ctx).Debug("document store returned an error",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, errors.NewTransportError(resp.StatusCode, msg).
			WithDetail("method", method).
			WithDetail("path", req.URL.Path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewTransportError(resp.StatusCode, "failed to read response body").WithCause(err)
	}
	return body, nil
}

// errorMessage extracts "error" or "message" from a JSON error body, falling
// back to the raw text or the status line.
func errorMessage(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"error", "message"} {
			if r := gjson.GetBytes(body, field); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return text
	}
	return status
}
