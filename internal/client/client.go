// Package client talks to a wanboard API server.
//
// Every call decodes the response envelope and turns error=true into a
// structured error, including the HTTP 200 responses the server uses for
// unknown interface names.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/wanboard/internal/audit"
	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/unifi"
	"grimm.is/wanboard/internal/wan"
)

// envelope mirrors the server's response body.
type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// HTTPClient calls the wanboard API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	insecure   bool
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithInsecureTLS accepts self-signed server certificates.
func WithInsecureTLS() ClientOption {
	return func(c *HTTPClient) {
		c.insecure = true
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

// NewHTTPClient creates a new HTTPClient for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an HTTP request and decodes the envelope's data into result.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.KindUpstreamUnavailable, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to read response body")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errors.Errorf(kindForStatus(resp.StatusCode), "API error (status %d): %s",
				resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to decode response")
	}

	if env.Error || !env.Success {
		kind := kindForStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusOK {
			kind = errors.KindUnknownInterface
		}
		apiErr := errors.New(kind, env.Message)
		if len(env.Data) > 0 && string(env.Data) != "{}" {
			apiErr = errors.Attr(apiErr, "data", env.Data)
		}
		return errors.Attr(apiErr, "status", resp.StatusCode)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to decode response data")
		}
	}
	return nil
}

func kindForStatus(status int) errors.Kind {
	switch {
	case status == http.StatusBadRequest:
		return errors.KindValidation
	case status == http.StatusNotFound:
		return errors.KindNotFound
	case status == http.StatusBadGateway:
		return errors.KindUpstreamUnavailable
	case status == http.StatusTooManyRequests:
		return errors.KindRateLimited
	case status >= 500:
		return errors.KindInternal
	default:
		return errors.KindUnknown
	}
}

// Connections returns the connection view.
func (c *HTTPClient) Connections(ctx context.Context) ([]wan.Connection, error) {
	var conns []wan.Connection
	if err := c.doRequest(ctx, http.MethodGet, "/api/connections", &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// PreferMessage makes interfaceName the preferred WAN and returns the
// server's confirmation.
func (c *HTTPClient) PreferMessage(ctx context.Context, interfaceName string) (string, error) {
	return c.mutate(ctx, "prefer", interfaceName)
}

// RefreshMessage pulses interfaceName and returns the server's confirmation.
func (c *HTTPClient) RefreshMessage(ctx context.Context, interfaceName string) (string, error) {
	return c.mutate(ctx, "refresh", interfaceName)
}

// Prefer implements dashboard.Backend.
func (c *HTTPClient) Prefer(ctx context.Context, interfaceName string) error {
	_, err := c.PreferMessage(ctx, interfaceName)
	return err
}

// Refresh implements dashboard.Backend.
func (c *HTTPClient) Refresh(ctx context.Context, interfaceName string) error {
	_, err := c.RefreshMessage(ctx, interfaceName)
	return err
}

func (c *HTTPClient) mutate(ctx context.Context, action, interfaceName string) (string, error) {
	var data struct {
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/api/connections/%s/%s", action, url.PathEscape(interfaceName))
	if err := c.doRequest(ctx, http.MethodPost, path, &data); err != nil {
		return "", err
	}
	return data.Message, nil
}

// Throughput returns the combined WAN rates.
func (c *HTTPClient) Throughput(ctx context.Context) (*wan.Throughput, error) {
	var tp wan.Throughput
	if err := c.doRequest(ctx, http.MethodGet, "/api/throughput", &tp); err != nil {
		return nil, err
	}
	return &tp, nil
}

// Devices returns the reachability of the configured devices.
func (c *HTTPClient) Devices(ctx context.Context) ([]monitor.DeviceStatus, error) {
	var devices []monitor.DeviceStatus
	if err := c.doRequest(ctx, http.MethodGet, "/api/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// PowerStatus reports whether mains power is up.
func (c *HTTPClient) PowerStatus(ctx context.Context) (*monitor.PowerStatus, error) {
	var ps monitor.PowerStatus
	if err := c.doRequest(ctx, http.MethodGet, "/api/power-status", &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// GuestWifi returns the guest network name and passphrase.
func (c *HTTPClient) GuestWifi(ctx context.Context) (*unifi.GuestWifi, error) {
	var gw unifi.GuestWifi
	if err := c.doRequest(ctx, http.MethodGet, "/api/guest-wifi", &gw); err != nil {
		return nil, err
	}
	return &gw, nil
}

// ResetGuestPassword rotates the guest passphrase.
func (c *HTTPClient) ResetGuestPassword(ctx context.Context) (*unifi.GuestWifi, error) {
	var gw unifi.GuestWifi
	if err := c.doRequest(ctx, http.MethodPost, "/api/guest-wifi/reset-password", &gw); err != nil {
		return nil, err
	}
	return &gw, nil
}

// Audit returns recent audit events, newest first. An empty action
// matches all actions.
func (c *HTTPClient) Audit(ctx context.Context, action string, limit int) ([]audit.Event, error) {
	q := url.Values{}
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/audit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var events []audit.Event
	if err := c.doRequest(ctx, http.MethodGet, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Watch streams the connection view until ctx is done or the server closes
// the stream. onView receives each view, or the error the server reported
// for that tick.
func (c *HTTPClient) Watch(ctx context.Context, onView func([]wan.Connection, error)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/ws/connections"

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	if c.insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to dial websocket")
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.KindUpstreamUnavailable, "websocket read failed")
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			continue // Skip malformed
		}
		if env.Error {
			onView(nil, errors.New(errors.KindUpstreamUnavailable, env.Message))
			continue
		}
		var conns []wan.Connection
		if err := json.Unmarshal(env.Data, &conns); err != nil {
			continue
		}
		onView(conns, nil)
	}
}
