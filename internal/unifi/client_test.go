package unifi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/metrics"
)

type fakeController struct {
	mu       sync.Mutex
	wlans    []map[string]any
	logins   int
	puts     []map[string]string
	expireOn int
	requests int
}

func (f *fakeController) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"meta":{"rc":"error","msg":"api.err.Invalid"},"data":[]}`))
			return
		}
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "unifises", Value: "session", Path: "/"})
		w.Write([]byte(`{"meta":{"rc":"ok"},"data":[]}`))
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.requests++
			expire := f.expireOn != 0 && f.requests == f.expireOn
			f.mu.Unlock()
			if _, err := r.Cookie("unifises"); err != nil || expire {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"meta":{"rc":"error","msg":"api.err.LoginRequired"},"data":[]}`))
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /api/s/default/rest/wlanconf", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"meta": map[string]string{"rc": "ok"}, "data": f.wlans})
	}))
	mux.HandleFunc("PUT /api/s/default/rest/wlanconf/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["id"] = r.PathValue("id")
		f.mu.Lock()
		f.puts = append(f.puts, body)
		f.mu.Unlock()
		w.Write([]byte(`{"meta":{"rc":"ok"},"data":[]}`))
	}))
	return mux
}

func newTestClient(t *testing.T, f *fakeController) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Options{URL: srv.URL, Username: "admin", Password: "secret"})
}

func TestGuestWifi(t *testing.T) {
	f := &fakeController{wlans: []map[string]any{
		{"_id": "a1", "name": "Home", "enabled": true, "is_guest": false, "x_passphrase": "private"},
		{"_id": "b2", "name": "Guests", "enabled": true, "is_guest": true, "x_passphrase": "welcome1"},
	}}
	c := newTestClient(t, f)

	got, err := c.GuestWifi(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &GuestWifi{Name: "Guests", Password: "welcome1"}, got)

	_, err = c.GuestWifi(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.logins, "session cookie should be reused")
}

func TestGuestWifiDisabled(t *testing.T) {
	cases := map[string][]map[string]any{
		"disabled": {{"_id": "b2", "name": "Guests", "enabled": false, "is_guest": true}},
		"missing":  {{"_id": "a1", "name": "Home", "enabled": true, "is_guest": false}},
	}
	for name, wlans := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, &fakeController{wlans: wlans})
			_, err := c.GuestWifi(context.Background())
			require.Error(t, err)
			assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
			assert.Equal(t, GuestDisabledMessage, err.Error())
		})
	}
}

func TestResetPassword(t *testing.T) {
	f := &fakeController{wlans: []map[string]any{
		{"_id": "b2", "name": "Guests", "enabled": true, "is_guest": true, "x_passphrase": "old"},
	}}
	c := newTestClient(t, f)
	before := testutil.ToFloat64(metrics.Get().GuestPasswordRotations.WithLabelValues("ok"))

	got, err := c.ResetPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Guests", got.Name)
	assert.Len(t, got.Password, PasswordLength)

	require.Len(t, f.puts, 1)
	assert.Equal(t, "b2", f.puts[0]["id"])
	assert.Equal(t, got.Password, f.puts[0]["x_passphrase"])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Get().GuestPasswordRotations.WithLabelValues("ok")))
}

func TestSessionExpiryRelogin(t *testing.T) {
	f := &fakeController{
		wlans:    []map[string]any{{"_id": "b2", "name": "Guests", "enabled": true, "is_guest": true}},
		expireOn: 2,
	}
	c := newTestClient(t, f)

	_, err := c.GuestWifi(context.Background())
	require.NoError(t, err)
	_, err = c.GuestWifi(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer((&fakeController{}).handler(t))
	defer srv.Close()
	c := NewClient(Options{URL: srv.URL, Username: "admin", Password: "wrong"})

	_, err := c.GuestWifi(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamUnavailable, errors.GetKind(err))
	assert.Contains(t, err.Error(), "unifi login failed")
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		pw, err := GeneratePassword(PasswordLength)
		require.NoError(t, err)
		require.Len(t, pw, PasswordLength)
		for _, r := range pw {
			assert.True(t, strings.ContainsRune(passwordAlphabet, r), "unexpected rune %q", r)
		}
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 45)
}
