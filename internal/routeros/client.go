// Package routeros talks to a MikroTik router through its REST API.
//
// Commands use the CLI menu path form ("/interface/print",
// "/ip/route/set") and parameters are always strings, the way RouterOS
// itself represents them. Every transport or router-side failure is reported
// as errors.KindUpstreamUnavailable.
package routeros

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
)

// Row is one record returned by the router. Keys are RouterOS property
// names, including ".id".
type Row map[string]string

// ID returns the router's internal item id (".id").
func (r Row) ID() string {
	return r[".id"]
}

// Bool reports whether the named property is set to a true value.
func (r Row) Bool(key string) bool {
	return ParseBool(r[key])
}

// ParseBool accepts the boolean spellings RouterOS uses: "true"/"false" in
// the REST API and "yes"/"no" in command parameters.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	}
	return false
}

// Client runs a single router command and returns its rows.
type Client interface {
	Run(ctx context.Context, command string, params map[string]string) ([]Row, error)
}

// HTTPClient implements Client against the RouterOS v7 REST API.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithCredentials sets the basic-auth credentials.
func WithCredentials(username, password string) ClientOption {
	return func(c *HTTPClient) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithInsecureTLS accepts the router's self-signed certificate.
func WithInsecureTLS(insecure bool) ClientOption {
	return func(c *HTTPClient) {
		if !insecure {
			return
		}
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client for the router at baseURL, e.g.
// "https://192.168.88.1".
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logging.WithComponent("routeros"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// routerError is the body RouterOS returns alongside a non-2xx status.
type routerError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Run posts params to /rest<command> and decodes the result.
func (c *HTTPClient) Run(ctx context.Context, command string, params map[string]string) ([]Row, error) {
	start := time.Now()
	rows, err := c.run(ctx, command, params)

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Warn("router command failed", "command", command, "error", err)
	} else {
		c.logger.Debug("router command", "command", command, "rows", len(rows), "took", time.Since(start))
	}
	m := metrics.Get()
	m.RouterRequests.WithLabelValues(command, status).Inc()
	m.RouterRequestDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())

	return rows, err
}

func (c *HTTPClient) run(ctx context.Context, command string, params map[string]string) ([]Row, error) {
	if params == nil {
		params = map[string]string{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to marshal router params")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest"+command, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to create router request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Attr(
			errors.Wrap(err, errors.KindUpstreamUnavailable, "router unreachable"),
			"command", command)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to read router response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		var re routerError
		if json.Unmarshal(respBody, &re) == nil && (re.Message != "" || re.Detail != "") {
			msg = strings.TrimSpace(re.Message + ": " + re.Detail)
		}
		return nil, errors.Attr(
			errors.Errorf(errors.KindUpstreamUnavailable, "router error (status %d): %s", resp.StatusCode, msg),
			"command", command)
	}

	rows, err := decodeRows(respBody)
	if err != nil {
		return nil, errors.Attr(
			errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to decode router response"),
			"command", command)
	}
	return rows, nil
}

// decodeRows accepts an array of objects, a single object, or an empty body.
func decodeRows(data []byte) ([]Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []map[string]any
	if data[0] == '{' {
		var one map[string]any
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		raw = []map[string]any{one}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw))
	for _, obj := range raw {
		row := make(Row, len(obj))
		for k, v := range obj {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
