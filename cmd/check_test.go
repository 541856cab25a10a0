package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routerREST answers the two print commands the connection view needs.
func routerREST(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/interface/print", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{".id":"*1","name":"ether1","running":"true","disabled":"false"},
			{".id":"*2","name":"PPPoE-ISP1","running":"true","disabled":"false"},
			{".id":"*3","name":"PPPoE-ISP2","running":"false","disabled":"false"}
		]`))
	})
	mux.HandleFunc("POST /rest/ip/route/print", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{".id":"*A","gateway":"PPPoE-ISP1","distance":"2","comment":"Default ISP1","active":"true"},
			{".id":"*B","gateway":"PPPoE-ISP2","distance":"3","comment":"Default ISP2","active":"false"}
		]`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCheck_ValidConfig(t *testing.T) {
	ts := routerREST(t)
	path := writeConfig(t, "wanboard.hcl", `
router {
  address = "`+ts.URL+`"
}

device "Router" {
  ip = "192.168.88.1"
}
`)

	var out bytes.Buffer
	require.NoError(t, RunCheck(context.Background(), &out, path, true))

	s := out.String()
	assert.Contains(t, s, "Configuration is valid")
	assert.Contains(t, s, "Devices:    1")
	assert.Contains(t, s, "PPPoE-ISP1")
	assert.NotContains(t, s, "ether1")
}

func TestRunCheck_YAML(t *testing.T) {
	ts := routerREST(t)
	path := writeConfig(t, "wanboard.yaml", "router:\n  address: "+ts.URL+"\n")

	require.NoError(t, RunCheck(context.Background(), &bytes.Buffer{}, path, false))
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "invalid.hcl", `
router {
  address = "https://192.168.88.1"
`)

	err := RunCheck(context.Background(), &bytes.Buffer{}, path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}

func TestRunCheck_RouterUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	path := writeConfig(t, "wanboard.hcl", `
router {
  address = "`+url+`"
  timeout = "1s"
}
`)

	var out bytes.Buffer
	err := RunCheck(context.Background(), &out, path, false)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Configuration is valid")
}
