package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scoreboard/config"
)

func TestLeafletRequests(t *testing.T) {
	cfg := config.Default().Assets
	cfg.BaseURL = "https://unpkg.com/"
	reqs := LeafletRequests(cfg, false)
	if len(reqs) != 5 {
		t.Fatalf("requests = %d", len(reqs))
	}
	if reqs[0].URL != "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" {
		t.Fatalf("css url = %s", reqs[0].URL)
	}
	if want := filepath.Join("www", "lib", "images", "marker-shadow.png"); reqs[4].Destination != want {
		t.Fatalf("shadow destination = %s, want %s", reqs[4].Destination, want)
	}
}

func TestFetchAllWritesLibraryLayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/leaflet@1.9.4/dist/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("asset:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default().Assets
	cfg.BaseURL = server.URL
	cfg.Dir = filepath.Join(t.TempDir(), "lib")
	results, err := FetchAll(testContext(t), LeafletRequests(cfg, false))
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d", len(results))
	}
	data, err := os.ReadFile(filepath.Join(cfg.Dir, "images", "marker-icon-2x.png"))
	if err != nil {
		t.Fatalf("read icon: %v", err)
	}
	if string(data) != "asset:/leaflet@1.9.4/dist/images/marker-icon-2x.png" {
		t.Fatalf("icon content = %q", data)
	}
}

func TestFetchAllStopsAtFirstFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	cfg := config.Default().Assets
	cfg.BaseURL = server.URL
	cfg.Dir = t.TempDir()
	results, err := FetchAll(testContext(t), LeafletRequests(cfg, false))
	if err == nil || len(results) != 0 {
		t.Fatalf("results=%d err=%v", len(results), err)
	}
}
