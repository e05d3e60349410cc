package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/httparchivedeps/pkg/manifest"
	"github.com/matzehuels/httparchivedeps/pkg/observability"
)

func newTestServer(t *testing.T, maxBody int64) *httptest.Server {
	t.Helper()
	c, _ := newTestCLI(t)
	reg := prometheus.NewRegistry()
	hooks := observability.NewPrometheusHooks(reg)
	observability.SetCollectorHooks(hooks)
	observability.SetGitHooks(hooks)
	t.Cleanup(observability.Reset)

	srv := httptest.NewServer(c.router(defaultConfig(), reg, maxBody))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServeHealthz(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
}

func TestServeManifest(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := post(t, srv.URL+"/v1/manifest?archive=startup_os", testWorkspace)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Run-Id") == "" {
		t.Error("missing X-Run-Id")
	}

	m, err := manifest.Read(resp.Body, manifest.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if m.CommitID != "5b9be84" || len(m.Deps) != 2 {
		t.Errorf("manifest = %+v", m)
	}

	metrics, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer metrics.Body.Close()
	text, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(text), `httparchivedeps_collector_archives_total{outcome="ok"} 1`) {
		t.Errorf("metrics do not count the archive:\n%s", text)
	}
}

func TestServeManifestPartialFailure(t *testing.T) {
	srv := newTestServer(t, 0)
	resp := post(t, srv.URL+"/v1/manifest?archive=startup_os&archive=unreachable&format=yaml", testWorkspace)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Failed-Archives"); got != "unreachable" {
		t.Errorf("X-Failed-Archives = %q", got)
	}
	m, err := manifest.Read(resp.Body, manifest.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Deps) != 2 {
		t.Errorf("deps = %+v", m.Deps)
	}
}

func TestServeManifestErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		body   string
		status int
		code   string
	}{
		{"bad workspace", "", "http_archive(name = ", http.StatusBadRequest, "INVALID_WORKSPACE"},
		{"bad format", "?format=xml", testWorkspace, http.StatusBadRequest, "INVALID_FORMAT"},
		{"too large", "", strings.Repeat("#", 2048), http.StatusRequestEntityTooLarge, "INVALID_INPUT"},
	}
	srv := newTestServer(t, 1024)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/manifest"+tt.query, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestServeMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/v1/manifest")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
