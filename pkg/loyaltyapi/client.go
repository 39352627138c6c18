// Package loyaltyapi is the HTTP client for the remote loyalty REST API.
package loyaltyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/config"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/google/uuid"
)

const (
	headerRequestID        = "X-Request-Id"
	responseBodyReadLimit  = 1 << 20
	defaultUserAgent       = "loyalty-portal"
	errorBodyPreviewLength = 256
)

var errBaseURLRequired = errors.New("loyalty api base url is required")

// Client calls the loyalty API. A zero timeout defers to the transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(agent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithLogger attaches a logger for per-call outcomes.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds the client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{},
		userAgent:  defaultUserAgent,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds the client from the API section of the config.
func NewFromConfig(cfg config.APIConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithUserAgent(cfg.UserAgent),
	}
	return NewClient(cfg.BaseURL, append(base, opts...)...)
}

// RejectionDetails is attached to errors produced from remote rejections.
type RejectionDetails struct {
	Call       string `json:"call"`
	StatusCode int    `json:"statusCode"`
	RemoteCode string `json:"remoteCode,omitempty"`
}

// IsRejection reports whether err came from the server refusing a call, as
// opposed to the call not completing.
func IsRejection(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	_, ok := typed.Details().(RejectionDetails)
	return ok
}

type request struct {
	call        string
	method      string
	path        string
	bearer      string
	body        io.Reader
	contentType string
	// expectEnvelope is false for calls whose 2xx body carries no contract.
	expectEnvelope bool
}

func jsonRequest(call, method, path string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("marshal %s request", call))
	}
	return request{
		call:           call,
		method:         method,
		path:           path,
		body:           bytes.NewReader(data),
		contentType:    "application/json",
		expectEnvelope: true,
	}, nil
}

// do executes req and returns the envelope data on success.
func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loyalty api client not configured")
	}

	requestID := uuid.NewString()
	ctx = c.logg.WithFields(ctx, map[string]any{
		"call":       req.call,
		"request_id": requestID,
	})

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path), req.body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", req.call))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerRequestID, requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logg.Warn(ctx, fmt.Sprintf("%s request did not complete", req.call))
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, pkgerrors.MetadataFor(pkgerrors.CodeTransport).PublicMessage)
	}
	defer func() { _ = resp.Body.Close() }()

	ctx = c.logg.WithFields(ctx, map[string]any{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		c.logg.Warn(ctx, fmt.Sprintf("%s response body unreadable", req.call))
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, pkgerrors.MetadataFor(pkgerrors.CodeTransport).PublicMessage)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logg.Warn(ctx, fmt.Sprintf("%s rejected", req.call))
		return nil, rejection(req.call, resp.StatusCode, body)
	}
	if !req.expectEnvelope {
		c.logg.Debug(ctx, fmt.Sprintf("%s succeeded", req.call))
		return nil, nil
	}

	var envelope types.RawEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logg.Warn(ctx, fmt.Sprintf("%s response malformed", req.call))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", req.call))
	}
	if !envelope.Success {
		c.logg.Warn(ctx, fmt.Sprintf("%s rejected", req.call))
		return nil, rejectedEnvelope(req.call, resp.StatusCode, envelope)
	}

	c.logg.Debug(ctx, fmt.Sprintf("%s succeeded", req.call))
	return envelope.Data, nil
}

func rejection(call string, status int, body []byte) error {
	var envelope types.RawEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && strings.TrimSpace(envelope.Message) != "" {
		return pkgerrors.New(pkgerrors.FromHTTPStatus(status), strings.TrimSpace(envelope.Message)).
			WithDetails(RejectionDetails{Call: call, StatusCode: status, RemoteCode: envelope.Code})
	}
	message := fmt.Sprintf("%s failed with status %d", call, status)
	if preview := strings.TrimSpace(string(body)); preview != "" && !strings.HasPrefix(preview, "{") {
		if len(preview) > errorBodyPreviewLength {
			preview = preview[:errorBodyPreviewLength]
		}
		message = fmt.Sprintf("%s: %s", message, preview)
	}
	return pkgerrors.New(pkgerrors.FromHTTPStatus(status), message).
		WithDetails(RejectionDetails{Call: call, StatusCode: status})
}

func rejectedEnvelope(call string, status int, envelope types.RawEnvelope) error {
	message := strings.TrimSpace(envelope.Message)
	if message == "" {
		message = pkgerrors.MetadataFor(pkgerrors.CodeRemoteRejected).PublicMessage
	}
	return pkgerrors.New(pkgerrors.CodeRemoteRejected, message).
		WithDetails(RejectionDetails{Call: call, StatusCode: status, RemoteCode: envelope.Code})
}

func decodeData(call string, data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s response missing data", call))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", call))
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
