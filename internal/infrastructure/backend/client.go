package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mycheff/engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every backend call
	DefaultTimeout = 15 * time.Second

	defaultUserAgent = "MyCheff-Engine/1.0"
	maxBodyBytes     = 8 << 20
)

// Request describes a single backend call. Path is relative to the base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	AccessToken string
	Timeout     time.Duration
}

// Response is the unwrapped success envelope
type Response struct {
	Status     int
	Data       json.RawMessage
	Message    string
	Pagination json.RawMessage
	Timestamp  string
	RequestID  string
}

// ClientConfig configures the transport
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	UserAgent string
}

// Client executes calls against the MyCheff backend. It maps transport and
// status failures to typed errors and does not retry or refresh tokens.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	timeout     time.Duration
	userAgent   string
	rateLimiter *rate.Limiter
	language    domain.LanguageSource
	logger      *zap.Logger
}

// NewClient creates a new backend client
func NewClient(cfg ClientConfig, language domain.LanguageSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 10
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     timeout,
		userAgent:   userAgent,
		rateLimiter: limiter,
		language:    language,
		logger:      logger.Named("backend"),
	}
}

// Execute performs req and returns the unwrapped envelope.
// Failures are always *domain.Error.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &domain.Error{Kind: domain.KindNetwork, Message: "rate limiter: " + err.Error(), Cause: err}
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get("X-Request-ID")

	c.logger.Debug("request",
		zap.String("method", httpReq.Method),
		zap.String("path", req.Path),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", zap.String("path", req.Path), zap.Error(err))
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(ctx, err)
	}

	c.logger.Debug("response",
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp.StatusCode, body)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return &Response{Status: resp.StatusCode, RequestID: requestID}, nil
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		return nil, &domain.Error{
			Kind:       domain.KindValidation,
			Message:    err.Error(),
			HTTPStatus: resp.StatusCode,
			Payload:    body,
			Cause:      err,
		}
	}
	if !env.Success {
		return nil, envelopeError(resp.StatusCode, env, body)
	}

	return &Response{
		Status:     resp.StatusCode,
		Data:       env.Data,
		Message:    env.Message,
		Pagination: env.Pagination,
		Timestamp:  env.Timestamp,
		RequestID:  requestID,
	}, nil
}

// newHTTPRequest builds the HTTP request with auth, language and JSON headers
func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, req.Query.Encode())
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &domain.Error{Kind: domain.KindValidation, Message: "failed to encode request body", Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindValidation, Message: "failed to create request", Cause: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}
	if c.language != nil {
		if lang := c.language.Language(); lang != "" {
			httpReq.Header.Set("Accept-Language", lang)
		}
	}

	return httpReq, nil
}

// networkError maps a failure with no HTTP response
func networkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.AsError(fmt.Errorf("%w: %v", ctxErr, err))
	}
	return &domain.Error{
		Kind:    domain.KindNetwork,
		Message: "Network connection failed. Please check your internet connection.",
		Cause:   err,
	}
}

// KindForStatus maps an HTTP status to an error kind
func KindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return domain.KindAuthentication
	case status == http.StatusForbidden:
		return domain.KindPermission
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusConflict:
		return domain.KindConflict
	case status >= http.StatusInternalServerError:
		return domain.KindServer
	default:
		return domain.KindUnknown
	}
}

// statusError builds a typed error from an error status and its body.
// The body may or may not be an envelope.
func statusError(status int, body []byte) error {
	e := &domain.Error{
		Kind:       KindForStatus(status),
		HTTPStatus: status,
		Payload:    body,
	}
	if env, err := ParseEnvelope(body); err == nil {
		e.Message = env.Message
		e.Errors = env.Errors
		if len(env.Errors) > 0 && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) {
			e.Kind = domain.KindValidation
		}
	}
	if e.Message == "" {
		e.Message = defaultMessage(e.Kind, status)
	}
	return e
}

// envelopeError builds a typed error from a success=false envelope
func envelopeError(status int, env *Envelope, body []byte) error {
	kind := KindForStatus(status)
	if status < http.StatusBadRequest {
		kind = domain.KindUnknown
		if len(env.Errors) > 0 {
			kind = domain.KindValidation
		}
	}
	msg := env.Message
	if msg == "" {
		msg = defaultMessage(kind, status)
	}
	return &domain.Error{
		Kind:       kind,
		Message:    msg,
		HTTPStatus: status,
		Errors:     env.Errors,
		Payload:    body,
	}
}

func defaultMessage(kind domain.ErrorKind, status int) string {
	switch kind {
	case domain.KindAuthentication:
		return "Authentication failed. Please log in again."
	case domain.KindPermission:
		return "You do not have permission to perform this action."
	case domain.KindNotFound:
		return "The requested resource was not found."
	case domain.KindServer:
		return "Server error occurred. Please try again later."
	case domain.KindConflict:
		return "The resource was modified by another request."
	case domain.KindValidation:
		return "The request was rejected by the server."
	}
	return fmt.Sprintf("Request failed with status %d", status)
}
