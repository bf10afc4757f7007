package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/surge-load/surge/internal/metrics"
)

func TestTraceLoggingEmitsTimingBreakdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := DefaultConfig()
	cfg.Endpoint = server.URL
	c := New(cfg, []byte(`{}`), nil, metrics.NewEngine()).WithTraceLogging(logger)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "invocation timing" {
			entry = e
		}
	}
	if entry == nil {
		t.Fatal("expected an invocation timing entry")
	}

	total, ok := entry.Data["total"].(time.Duration)
	if !ok || total <= 0 {
		t.Errorf("expected positive total time, got %v", entry.Data["total"])
	}
	if _, ok := entry.Data["ttfb"]; !ok {
		t.Error("expected a ttfb field")
	}
}

func TestTraceDisabledByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = server.URL
	c := New(cfg, nil, nil, metrics.NewEngine())

	// Must not panic without a trace logger configured.
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
