// Package unifi reads and rotates the guest Wi-Fi passphrase on a UniFi
// controller.
package unifi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
)

// PasswordLength is the length of generated guest passphrases.
const PasswordLength = 12

// passwordAlphabet leaves out characters that are easy to misread on a
// printed card (0/O, 1/l/I).
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GuestDisabledMessage is reported when no enabled guest network exists.
const GuestDisabledMessage = "Guest network disabled"

// GuestWifi is the guest network name and its current passphrase.
type GuestWifi struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// WLAN is the subset of a wlanconf record the dashboard reads.
type WLAN struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	IsGuest    bool   `json:"is_guest"`
	Passphrase string `json:"x_passphrase"`
}

type envelope struct {
	Meta struct {
		RC  string `json:"rc"`
		Msg string `json:"msg"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Client is a session-holding UniFi controller client.
type Client struct {
	baseURL  string
	username string
	password string
	site     string

	httpClient *http.Client
	logger     *logging.Logger

	mu       sync.Mutex
	loggedIn bool
}

// Options configures a Client.
type Options struct {
	URL      string
	Username string
	Password string
	Site     string
	Insecure bool
	Timeout  time.Duration
	Logger   *logging.Logger
}

// NewClient creates a UniFi client. Login happens lazily on first use.
func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	transport := http.DefaultTransport
	if opts.Insecure {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Site == "" {
		opts.Site = "default"
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("unifi")
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		username:   opts.Username,
		password:   opts.Password,
		site:       opts.Site,
		httpClient: &http.Client{Jar: jar, Timeout: opts.Timeout, Transport: transport},
		logger:     opts.Logger,
	}
}

// GuestWifi returns the first enabled guest network and its passphrase.
func (c *Client) GuestWifi(ctx context.Context) (*GuestWifi, error) {
	wlan, err := c.guestWLAN(ctx)
	if err != nil {
		return nil, err
	}
	return &GuestWifi{Name: wlan.Name, Password: wlan.Passphrase}, nil
}

// ResetPassword assigns a freshly generated passphrase to the guest network.
func (c *Client) ResetPassword(ctx context.Context) (*GuestWifi, error) {
	result, err := c.resetPassword(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Get().GuestPasswordRotations.WithLabelValues(status).Inc()
	return result, err
}

func (c *Client) resetPassword(ctx context.Context) (*GuestWifi, error) {
	wlan, err := c.guestWLAN(ctx)
	if err != nil {
		return nil, err
	}
	pw, err := GeneratePassword(PasswordLength)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/api/s/%s/rest/wlanconf/%s", c.site, wlan.ID)
	if err := c.call(ctx, http.MethodPut, path, map[string]string{"x_passphrase": pw}, nil); err != nil {
		return nil, err
	}
	c.logger.Info("guest passphrase rotated", "network", wlan.Name)
	return &GuestWifi{Name: wlan.Name, Password: pw}, nil
}

func (c *Client) guestWLAN(ctx context.Context) (*WLAN, error) {
	var wlans []WLAN
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/s/%s/rest/wlanconf", c.site), nil, &wlans); err != nil {
		return nil, err
	}
	for i := range wlans {
		if wlans[i].IsGuest {
			if !wlans[i].Enabled {
				return nil, errors.New(errors.KindNotFound, GuestDisabledMessage)
			}
			return &wlans[i], nil
		}
	}
	return nil, errors.New(errors.KindNotFound, GuestDisabledMessage)
}

// call performs an authenticated request, logging in first and once more
// if the session has expired.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if err := c.ensureLogin(ctx, false); err != nil {
		return err
	}
	status, err := c.do(ctx, method, path, body, out)
	if status == http.StatusUnauthorized {
		if err := c.ensureLogin(ctx, true); err != nil {
			return err
		}
		_, err = c.do(ctx, method, path, body, out)
	}
	return err
}

func (c *Client) ensureLogin(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn && !force {
		return nil
	}
	creds := map[string]string{"username": c.username, "password": c.password}
	if _, err := c.do(ctx, http.MethodPost, "/api/login", creds, nil); err != nil {
		c.loggedIn = false
		return errors.Wrap(err, errors.KindUpstreamUnavailable, "unifi login failed")
	}
	c.loggedIn = true
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, errors.KindInternal, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindUpstreamUnavailable, "unifi controller unreachable")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return resp.StatusCode, errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to decode unifi response")
	}
	if resp.StatusCode >= 400 || (env.Meta.RC != "" && env.Meta.RC != "ok") {
		return resp.StatusCode, errors.Attr(
			errors.Errorf(errors.KindUpstreamUnavailable, "unifi error (status %d): %s", resp.StatusCode, env.Meta.Msg),
			"path", path)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, errors.Wrap(err, errors.KindUpstreamUnavailable, "failed to decode unifi data")
		}
	}
	return resp.StatusCode, nil
}

// GeneratePassword returns n characters drawn uniformly from an alphabet
// without look-alike characters.
func GeneratePassword(n int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, errors.KindInternal, "failed to generate password")
		}
		sb.WriteByte(passwordAlphabet[i.Int64()])
	}
	return sb.String(), nil
}
