package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/surge-load/surge/internal/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.number)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, result, tt.expected)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"\033[32mgreen\033[0m", "green"},
		{"\033[1mbold\033[0m text", "bold text"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := stripANSI(tt.input)
			if result != tt.expected {
				t.Errorf("stripANSI(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := renderProgressBar(0.5, 10)
	if !strings.HasPrefix(bar, "[") || !strings.HasSuffix(bar, "]") {
		t.Errorf("expected bracketed bar, got %q", bar)
	}
	if strings.Count(bar, progressFilled) != 5 {
		t.Errorf("expected 5 filled cells at 50%%, got %q", bar)
	}

	// Out-of-range progress is clamped
	full := renderProgressBar(1.5, 10)
	if strings.Count(full, progressEmpty) != 0 {
		t.Errorf("expected full bar above 100%%, got %q", full)
	}
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{
		RunName: "autoscaling benchmark",
		Writer:  &buf,
		NoColor: true,
	})

	console.PrintHeader()

	out := buf.String()
	if !strings.Contains(out, "autoscaling benchmark - Running") {
		t.Errorf("expected run name in header, got: %s", out)
	}
}

func TestQuietSuppressesHeaderAndProgress(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	console.PrintHeader()
	console.PrintProgressLine(&LiveStats{TotalRequests: 10})

	if buf.Len() != 0 {
		t.Errorf("expected no output in quiet mode, got: %s", buf.String())
	}
}

func TestPrintProgressLine(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	console.PrintProgressLine(&LiveStats{
		Elapsed:       90 * time.Second,
		Progress:      0.25,
		ActiveWorkers: 2,
		TargetWorkers: 2,
		TotalRequests: 42,
		CurrentRPS:    0.5,
		Errors:        1,
		ErrorRate:     1.0 / 42,
		LatencyP95:    120 * time.Millisecond,
	})

	out := buf.String()
	if !strings.Contains(out, "Workers: 2/2") {
		t.Errorf("expected worker counts, got: %s", out)
	}
	if !strings.Contains(out, "Reqs: 42") {
		t.Errorf("expected request count, got: %s", out)
	}
	if !strings.Contains(out, "P95: 120ms") {
		t.Errorf("expected p95 latency, got: %s", out)
	}
}

func TestUpdateRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{
		Writer:   &buf,
		NoColor:  true,
		ForceTTY: true,
	})

	console.Update(&LiveStats{Progress: 0.1, ActiveWorkers: 1, TargetWorkers: 2})
	first := buf.Len()
	console.Update(&LiveStats{Progress: 0.2, ActiveWorkers: 2, TargetWorkers: 2})

	out := buf.String()
	if first == 0 {
		t.Fatal("expected live output on first update")
	}
	// Second update must clear the first display before redrawing.
	if !strings.Contains(out[first:], clearLine) {
		t.Errorf("expected clear sequences on redraw, got: %q", out[first:])
	}
	if strings.Count(out, "Workers:") != 2 {
		t.Errorf("expected two renders, got: %q", out)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{
		RunName: "benchmark",
		Writer:  &buf,
		NoColor: true,
	})

	console.PrintSummary(&metrics.Snapshot{
		TotalRequests:       1234,
		FailedRequests:      12,
		ErrorRate:           12.0 / 1234,
		RPS:                 3.4,
		Elapsed:             6 * time.Minute,
		CurrentPhase:        metrics.PhaseDone,
		WorkerStartFailures: 1,
		Latency: metrics.LatencyStats{
			Min: 10 * time.Millisecond,
			P50: 40 * time.Millisecond,
			P95: 200 * time.Millisecond,
			Max: 900 * time.Millisecond,
		},
	})

	out := buf.String()
	if !strings.Contains(out, "Completed") {
		t.Errorf("expected completion banner, got: %s", out)
	}
	if !strings.Contains(out, "1,234") {
		t.Errorf("expected formatted request count, got: %s", out)
	}
	if !strings.Contains(out, "Latency Distribution:") {
		t.Errorf("expected latency section, got: %s", out)
	}
	if !strings.Contains(out, "Worker Errors") {
		t.Errorf("expected worker error line, got: %s", out)
	}
}

func TestPrintSummaryQuiet(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	console.PrintSummary(&metrics.Snapshot{TotalRequests: 10, FailedRequests: 2, ErrorRate: 0.2})

	out := buf.String()
	if !strings.Contains(out, "requests=10") || !strings.Contains(out, "errors=2") {
		t.Errorf("expected machine-readable quiet summary, got: %s", out)
	}
	if strings.Contains(out, "Latency Distribution") {
		t.Errorf("quiet summary should be a single line, got: %s", out)
	}
}

func TestStatsFromSnapshot(t *testing.T) {
	snap := &metrics.Snapshot{
		Elapsed:       180 * time.Second,
		ActiveWorkers: 4,
		TotalRequests: 100,
		CurrentPhase:  metrics.PhaseSteady,
	}

	stats := StatsFromSnapshot(snap, 360*time.Second, 4, 2, 3, "plateau")
	if stats.Progress != 0.5 {
		t.Errorf("expected progress 0.5, got %v", stats.Progress)
	}
	if stats.CurrentStage != 2 || stats.TotalStages != 3 {
		t.Errorf("expected stage 2/3, got %d/%d", stats.CurrentStage, stats.TotalStages)
	}
	if stats.Phase != "steady" {
		t.Errorf("expected phase steady, got %q", stats.Phase)
	}

	// Nil snapshot yields an initializing placeholder
	empty := StatsFromSnapshot(nil, time.Minute, 2, 1, 3, "")
	if empty.Phase != string(metrics.PhaseInit) {
		t.Errorf("expected init phase for nil snapshot, got %q", empty.Phase)
	}
}
