// Package restapi is the editor's client for the workflow REST API rooted at
// the configured base path.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/petrijr/flowcanvas/pkg/api"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Client talks to the REST API. BasePath is read once at construction and
// never changed.
type Client struct {
	basePath string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for basePath, e.g. "https://example.com/rest".
func New(basePath string, opts ...Option) *Client {
	c := &Client{
		basePath: strings.TrimRight(basePath, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BasePath returns the base path requests are routed to.
func (c *Client) BasePath() string {
	return c.basePath
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// FetchWorkflow loads workflow id.
func (c *Client) FetchWorkflow(ctx context.Context, id string) (*api.Graph, error) {
	var out envelope[*api.Graph]
	if err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("fetch workflow %s: empty response", id)
	}
	return out.Data, nil
}

// SaveWorkflow stores g under its ID.
func (c *Client) SaveWorkflow(ctx context.Context, g *api.Graph) error {
	if g == nil || g.ID == "" {
		return api.Violation(api.ErrCodeInvalidPayload, "workflow without id cannot be saved")
	}
	return c.do(ctx, http.MethodPatch, "/workflows/"+url.PathEscape(g.ID), g, nil)
}

// FetchSchemaPreview loads the parameter schema for a node type.
func (c *Client) FetchSchemaPreview(ctx context.Context, q api.SchemaQuery) (api.Schema, error) {
	if q.NodeType == "" {
		return nil, api.Violation(api.ErrCodeInvalidPayload, "schema query without node type")
	}
	path := "/schemas/" + url.PathEscape(q.NodeType) + "/" + strconv.FormatFloat(q.Version, 'f', -1, 64)
	if q.Resource != "" {
		path += "/" + url.PathEscape(q.Resource)
	}
	if q.Operation != "" {
		path += "/" + url.PathEscape(q.Operation)
	}

	var out envelope[api.Schema]
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("schema preview %s: empty response", q.NodeType)
	}
	return out.Data, nil
}

// SchemaPreview is FetchSchemaPreview for UI use: any failure is logged and
// answered with api.FallbackSchema.
func (c *Client) SchemaPreview(ctx context.Context, q api.SchemaQuery) api.Schema {
	s, err := c.FetchSchemaPreview(ctx, q)
	if err != nil {
		c.logger.Warn("schema_preview_failed", "node_type", q.NodeType, "error", err)
		return api.FallbackSchema()
	}
	return s
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.basePath + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, u, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
