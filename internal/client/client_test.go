package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/surge-load/surge/internal/client"
	"github.com/surge-load/surge/internal/metrics"
)

func newTestClient(t *testing.T, serverURL string, sel client.Selector) (*client.Client, *metrics.Engine) {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.Endpoint = serverURL
	engine := metrics.NewEngine()
	return client.New(cfg, []byte(`{"inputs":"hello"}`), sel, engine), engine
}

func TestClient_Run_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"prediction":[0.9,0.1]}`))
	}))
	defer server.Close()

	c, engine := newTestClient(t, server.URL, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := engine.GetSnapshot()
	if snap.TotalRequests != 1 || snap.SuccessRequests != 1 {
		t.Errorf("snapshot = %d total / %d success, want 1/1", snap.TotalRequests, snap.SuccessRequests)
	}
}

func TestClient_Run_HTTPErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, engine := newTestClient(t, server.URL, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := engine.GetSnapshot()
	if snap.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", snap.FailedRequests)
	}
}

func TestClient_Run_EmbeddedModelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer server.Close()

	c, engine := newTestClient(t, server.URL, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := engine.GetSnapshot()
	if snap.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1 for 200 with error body", snap.FailedRequests)
	}
}

func TestClient_Run_SendsVariantHeader(t *testing.T) {
	var gotVariant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVariant = r.Header.Get("X-Target-Variant")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, client.Fixed("distilbert-v3"))
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotVariant != "distilbert-v3" {
		t.Errorf("X-Target-Variant = %q, want distilbert-v3", gotVariant)
	}
}

func TestClient_Run_TransportFailureRecorded(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := client.DefaultConfig()
	cfg.Endpoint = url
	cfg.Timeout = time.Second
	engine := metrics.NewEngine()
	c := client.New(cfg, []byte("x"), nil, engine)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, transport failures must not propagate", err)
	}

	snap := engine.GetSnapshot()
	if snap.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", snap.FailedRequests)
	}
}

func TestClient_Run_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Run(ctx); err == nil {
		t.Error("Run() with cancelled context returned nil, want context error")
	}
}

func TestRandomVariant_Pick(t *testing.T) {
	sel := client.NewRandomVariant("vgg16", 5, 1)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := sel.Pick()
		seen[name] = true
	}

	// All picks stay within the configured variant space.
	for name := range seen {
		switch name {
		case "vgg16-v0", "vgg16-v1", "vgg16-v2", "vgg16-v3", "vgg16-v4":
		default:
			t.Fatalf("Pick() = %q, outside variant space", name)
		}
	}
	if len(seen) < 2 {
		t.Errorf("Pick() returned %d distinct variants over 200 picks, want spread", len(seen))
	}
}

func TestRandomVariant_SingleVariant(t *testing.T) {
	sel := client.NewRandomVariant("bert", 0, 1)
	if got := sel.Pick(); got != "bert-v0" {
		t.Errorf("Pick() = %q, want bert-v0", got)
	}
}

func TestLoadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`{"inputs":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := client.LoadPayload(path)
	if err != nil {
		t.Fatalf("LoadPayload() error = %v", err)
	}
	if string(data) != `{"inputs":"x"}` {
		t.Errorf("LoadPayload() = %q", data)
	}

	if _, err := client.LoadPayload(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadPayload(missing) expected error, got nil")
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := client.LoadPayload(empty); err == nil {
		t.Error("LoadPayload(empty) expected error, got nil")
	}
}

func TestDetectContentType(t *testing.T) {
	if got := client.DetectContentType([]byte(`{"a":1}`)); got != "application/json" {
		t.Errorf("DetectContentType(json) = %q", got)
	}
	if got := client.DetectContentType([]byte{0x89, 0x50, 0x4e, 0x47}); got != "application/octet-stream" {
		t.Errorf("DetectContentType(binary) = %q", got)
	}
}
