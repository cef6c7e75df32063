// Package connector executes calls against declaratively configured HTTP
// APIs: it builds authenticated requests from endpoint configuration, runs
// them with bounded constant-delay retry, and decodes responses through the
// codec package.
package connector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/conduit/pkg/codec"
	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// Connector owns one HTTP client for one API. It holds no mutable
// request-building state, so a single Connector is safe for concurrent calls,
// and callers may equally construct one per call.
type Connector struct {
	config   *APIConfig
	settings Settings
	client   *http.Client
	logger   hclog.Logger
}

// Response is a successfully parsed HTTP response.
type Response struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	URL         string            `json:"url"`
	ContentType string            `json:"content_type"`

	// Format records how the body was decoded (json, xml, text).
	Format codec.Format `json:"format"`

	// Data is the decoded body.
	Data structured.Value `json:"data"`

	// ParseError is set when the body failed to parse as its declared
	// content type and Data holds the raw text instead. Non-fatal.
	ParseError string `json:"parse_error,omitempty"`

	// ElapsedMS is the duration of the successful attempt in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// ConnectionInfo is the result of a connectivity probe against the base URL.
type ConnectionInfo struct {
	StatusCode int               `json:"status_code"`
	ElapsedMS  int64             `json:"elapsed_ms"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
}

// New creates a connector for a validated API config. Zero Timeout,
// MaxRetries, RetryDelay, and UserAgent fields fall back to DefaultSettings;
// the boolean toggles are taken as given. A negative MaxRetries disables
// retries.
func New(config *APIConfig, settings Settings, logger hclog.Logger) (*Connector, error) {
	if config == nil {
		return nil, fmt.Errorf("nil API config")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API config %q: %w", config.Name, err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	settings = settings.withDefaults()

	return &Connector{
		config:   config,
		settings: settings,
		client:   settings.NewHTTPClient(),
		logger:   logger.Named("connector").With("api", config.Name),
	}, nil
}

// Endpoints returns a copy of the configured endpoints keyed by name.
func (c *Connector) Endpoints() map[string]EndpointConfig {
	out := make(map[string]EndpointConfig, len(c.config.Endpoints))
	for name, ep := range c.config.Endpoints {
		out[name] = ep
	}
	return out
}

// Call invokes a configured endpoint. Per-call state machine:
// build request -> send -> (retryable failure -> fixed delay -> send)* ->
// terminal. Only 5xx responses and transport timeouts/connection failures are
// retried; 4xx responses and malformed requests are terminal immediately.
// After exhausting retries the last observed failure is surfaced.
func (c *Connector) Call(ctx context.Context, endpointName string, params map[string]interface{}) (*Response, error) {
	ep, ok := c.config.Endpoints[endpointName]
	if !ok {
		return nil, &CallError{
			Kind:    ErrMissingEndpoint,
			Message: fmt.Sprintf("endpoint not configured: %s", endpointName),
		}
	}

	plan, err := c.buildRequest(ep, params)
	if err != nil {
		return nil, &CallError{Kind: ErrRequestInvalid, Message: err.Error(), Err: err}
	}

	c.logger.Debug("calling endpoint",
		"endpoint", endpointName,
		"method", plan.method,
		"url", plan.url,
	)

	var resp *Response
	var last *CallError
	attempts := 0

	operation := func() error {
		attempts++
		r, cerr := c.attempt(ctx, plan)
		if cerr != nil {
			last = cerr
			if cerr.Kind == ErrClientError || cerr.Kind == ErrRequestInvalid {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.settings.RetryDelay),
			uint64(c.settings.MaxRetries),
		),
		ctx,
	)

	notify := func(err error, delay time.Duration) {
		c.logger.Warn("request failed, retrying",
			"endpoint", endpointName,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if last != nil {
			c.logger.Error("call failed",
				"endpoint", endpointName,
				"attempts", attempts,
				"kind", last.Kind,
			)
			return nil, last
		}
		return nil, err
	}

	c.logger.Info("call succeeded",
		"endpoint", endpointName,
		"status", resp.StatusCode,
		"attempts", attempts,
		"elapsed_ms", resp.ElapsedMS,
	)
	return resp, nil
}

// TestConnection probes the API base URL with a single authenticated GET.
// A status below 400 counts as reachable; anything else is returned as a
// client-error CallError alongside the probe details.
func (c *Connector) TestConnection(ctx context.Context) (*ConnectionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return nil, &CallError{Kind: ErrRequestInvalid, Message: err.Error(), Err: err}
	}
	c.applyHeaders(req)

	start := time.Now()
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer httpResp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, httpResp.Body)

	info := &ConnectionInfo{
		StatusCode: httpResp.StatusCode,
		ElapsedMS:  time.Since(start).Milliseconds(),
		URL:        httpResp.Request.URL.String(),
		Headers:    flattenHeaders(httpResp.Header),
	}

	if httpResp.StatusCode >= 400 {
		return info, &CallError{
			Kind:       ErrClientError,
			StatusCode: httpResp.StatusCode,
			Message:    fmt.Sprintf("connection test returned status %d", httpResp.StatusCode),
		}
	}
	return info, nil
}

// requestPlan is the immutable result of request building, shared by every
// attempt of one call.
type requestPlan struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

func (c *Connector) buildRequest(ep EndpointConfig, params map[string]interface{}) (*requestPlan, error) {
	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}

	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(ep.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint path %q: %w", ep.Path, err)
	}
	resolved := base.ResolveReference(ref)

	headers := c.authHeaders()
	for k, v := range ep.Headers {
		headers[k] = v
	}

	var body []byte
	if len(params) > 0 {
		if method == http.MethodGet || method == http.MethodDelete {
			q := resolved.Query()
			for k, v := range params {
				q.Set(k, fmt.Sprintf("%v", v))
			}
			resolved.RawQuery = q.Encode()
		} else {
			contentType := headers["Content-Type"]
			if contentType == "" {
				contentType = "application/json"
				headers["Content-Type"] = contentType
			}
			if strings.Contains(contentType, "application/x-www-form-urlencoded") {
				form := url.Values{}
				for k, v := range params {
					form.Set(k, fmt.Sprintf("%v", v))
				}
				body = []byte(form.Encode())
			} else {
				body, err = json.Marshal(params)
				if err != nil {
					return nil, fmt.Errorf("marshaling request body: %w", err)
				}
			}
		}
	}

	return &requestPlan{
		method:  method,
		url:     resolved.String(),
		headers: headers,
		body:    body,
	}, nil
}

// authHeaders builds the authentication headers as a pure function of the
// configured auth type.
func (c *Connector) authHeaders() map[string]string {
	headers := map[string]string{}

	switch c.config.AuthType {
	case AuthAPIKey:
		name := c.config.Auth.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		headers[name] = c.config.Auth.Key

	case AuthBearer:
		headers["Authorization"] = "Bearer " + c.config.Auth.Token

	case AuthBasic:
		credentials := base64.StdEncoding.EncodeToString(
			[]byte(c.config.Auth.Username + ":" + c.config.Auth.Password),
		)
		headers["Authorization"] = "Basic " + credentials

	case AuthCustom:
		for k, v := range c.config.Auth.Headers {
			headers[k] = v
		}
	}

	return headers
}

func (c *Connector) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.settings.UserAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/plain, */*")
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
}

// attempt performs one HTTP exchange and classifies the outcome.
func (c *Connector) attempt(ctx context.Context, plan *requestPlan) (*Response, *CallError) {
	var bodyReader io.Reader
	if plan.body != nil {
		bodyReader = bytes.NewReader(plan.body)
	}

	req, err := http.NewRequestWithContext(ctx, plan.method, plan.url, bodyReader)
	if err != nil {
		return nil, &CallError{Kind: ErrRequestInvalid, Message: err.Error(), Err: err}
	}

	req.Header.Set("User-Agent", c.settings.UserAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/plain, */*")
	for k, v := range plan.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &CallError{
			Kind:    ErrConnectionExhausted,
			Message: fmt.Sprintf("reading response body: %v", err),
			Err:     err,
		}
	}
	elapsed := time.Since(start)

	if httpResp.StatusCode >= 500 {
		return nil, &CallError{
			Kind:       ErrServerErrorExhausted,
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(httpResp.StatusCode, respBody),
		}
	}

	if httpResp.StatusCode >= 400 {
		return nil, &CallError{
			Kind:       ErrClientError,
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(httpResp.StatusCode, respBody),
		}
	}

	contentType := httpResp.Header.Get("Content-Type")
	decoded := codec.Decode(contentType, respBody)

	return &Response{
		StatusCode:  httpResp.StatusCode,
		Headers:     flattenHeaders(httpResp.Header),
		URL:         httpResp.Request.URL.String(),
		ContentType: contentType,
		Format:      decoded.Format,
		Data:        decoded.Data,
		ParseError:  decoded.ParseError,
		ElapsedMS:   elapsed.Milliseconds(),
	}, nil
}

// classifyTransport sorts a transport failure into the retry taxonomy:
// timeouts and connection failures are retryable; anything else aborts.
func classifyTransport(err error) *CallError {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &CallError{
			Kind:    ErrTimeoutExhausted,
			Message: "request timed out",
			Err:     err,
		}
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return &CallError{
			Kind:    ErrConnectionExhausted,
			Message: fmt.Sprintf("connection error: %v", ue.Err),
			Err:     err,
		}
	}

	return &CallError{Kind: ErrRequestInvalid, Message: err.Error(), Err: err}
}

// errorMessage extracts a useful message from an HTTP error response: a
// "message" or "error" field of a JSON body when present, otherwise a body
// excerpt.
func errorMessage(status int, body []byte) string {
	msg := fmt.Sprintf("HTTP error %d", status)

	v, err := structured.DecodeJSON(body)
	if err == nil && v.Kind() == structured.KindMap {
		for _, field := range []string{"message", "error"} {
			if fv, ok := v.Get(field); ok && fv.Kind() == structured.KindString && fv.StringVal() != "" {
				return fmt.Sprintf("%s: %s", msg, fv.StringVal())
			}
		}
	}

	if len(body) > 0 {
		return fmt.Sprintf("%s: %s", msg, excerpt(string(body), 200))
	}
	return msg
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
