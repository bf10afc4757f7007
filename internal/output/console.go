// Package output renders live run progress and the final summary to
// the console.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/surge-load/surge/internal/metrics"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA" // Move cursor up N lines
	clearLine = "\033[2K"  // Clear entire line

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// ColorScheme defines the colors used for different display elements.
type ColorScheme struct {
	Title     *color.Color
	Border    *color.Color
	Dim       *color.Color
	Value     *color.Color
	Good      *color.Color
	Warn      *color.Color
	Bad       *color.Color
	Stage     *color.Color
	Latency   *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Border:    color.New(color.FgCyan),
		Dim:       color.New(color.Faint),
		Value:     color.New(color.FgCyan),
		Good:      color.New(color.FgGreen),
		Warn:      color.New(color.FgYellow),
		Bad:       color.New(color.FgRed),
		Stage:     color.New(color.FgMagenta),
		Latency:   color.New(color.FgBlue),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.Title.DisableColor()
	scheme.Border.DisableColor()
	scheme.Dim.DisableColor()
	scheme.Value.DisableColor()
	scheme.Good.DisableColor()
	scheme.Warn.DisableColor()
	scheme.Bad.DisableColor()
	scheme.Stage.DisableColor()
	scheme.Latency.DisableColor()
	scheme.Highlight.DisableColor()

	return scheme
}

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	// Progress tracking
	Progress float64       // 0.0 to 1.0
	Elapsed  time.Duration // Time elapsed since run start

	// Worker stats
	ActiveWorkers int // Current active workers
	TargetWorkers int // Target concurrency for the current stage

	// Request stats
	CurrentRPS    float64 // Requests per second over the run
	TotalRequests int64   // Total invocations completed
	Errors        int64   // Total failed invocations
	ErrorRate     float64 // Error rate (0.0 to 1.0)

	// Latency stats
	LatencyP95 time.Duration
	LatencyAvg time.Duration

	// Stage info
	Phase        string // Current run phase name
	CurrentStage int    // Current stage number (1-indexed)
	TotalStages  int    // Total number of stages
	StageName    string // Optional stage label
}

// Console manages console output during a load run.
type Console struct {
	runName       string
	totalDuration time.Duration
	writer        io.Writer
	isTTY         bool
	quiet         bool
	scheme        *ColorScheme

	mu          sync.Mutex
	linesOutput int // Number of lines in the live display
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	RunName       string
	TotalDuration time.Duration
	Writer        io.Writer
	Quiet         bool
	NoColor       bool
	ForceTTY      bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)

	scheme := DefaultColorScheme()
	if config.NoColor || !isTTY {
		scheme = NoColorScheme()
	}

	return &Console{
		runName:       config.RunName,
		totalDuration: config.TotalDuration,
		writer:        config.Writer,
		isTTY:         isTTY,
		quiet:         config.Quiet,
		scheme:        scheme,
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return checkIsTerminal(f)
	}
	return false
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	name := c.runName
	if name == "" {
		name = "load run"
	}

	c.writeln(c.scheme.Border.Sprint(line))
	c.writeln(c.scheme.Title.Sprintf("%s - Running", name))
	c.writeln(c.scheme.Border.Sprint(line))
	c.writeln("")
}

// Update updates the live display with new statistics. Only effective
// on a TTY; use PrintProgressLine for piped output.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)

	for _, line := range lines {
		c.writeln(line)
	}
}

// clearLive clears the previous live display. Caller holds the lock.
func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

// renderLiveStats renders the live statistics display.
func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	progressBar := renderProgressBar(stats.Progress, 40)
	progressPercent := fmt.Sprintf("%.0f%%", stats.Progress*100)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(c.totalDuration))

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.scheme.Good.Sprint(progressBar),
		c.scheme.Title.Sprint(progressPercent),
		c.scheme.Dim.Sprint(timeInfo)))

	stageInfo := stats.Phase
	if stats.TotalStages > 0 {
		stageInfo = fmt.Sprintf("%s (%d/%d)", stats.Phase, stats.CurrentStage, stats.TotalStages)
	}
	if stats.StageName != "" {
		stageInfo += " " + stats.StageName
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.scheme.Stage.Sprint(stageInfo)))
	lines = append(lines, "")

	boxWidth := 55

	lines = append(lines, c.scheme.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	workersStr := fmt.Sprintf("Workers: %s / %d",
		c.scheme.Value.Sprintf("%d", stats.ActiveWorkers), stats.TargetWorkers)
	reqsStr := fmt.Sprintf("Requests:    %s", c.scheme.Value.Sprint(formatNumber(stats.TotalRequests)))
	lines = append(lines, c.formatBoxRow(workersStr, reqsStr, boxWidth))

	errColor := c.scheme.Good
	if stats.ErrorRate > 0.01 {
		errColor = c.scheme.Warn
	}
	if stats.ErrorRate > 0.05 {
		errColor = c.scheme.Bad
	}
	rpsStr := fmt.Sprintf("RPS:     %s", c.scheme.Good.Sprintf("%.1f", stats.CurrentRPS))
	errStr := fmt.Sprintf("Errors:      %s (%s)",
		errColor.Sprintf("%d", stats.Errors),
		errColor.Sprintf("%.1f%%", stats.ErrorRate*100))
	lines = append(lines, c.formatBoxRow(rpsStr, errStr, boxWidth))

	p95Str := fmt.Sprintf("P95:     %s", c.scheme.Latency.Sprint(formatDurationShort(stats.LatencyP95)))
	avgStr := fmt.Sprintf("Avg:         %s", c.scheme.Latency.Sprint(formatDurationShort(stats.LatencyAvg)))
	lines = append(lines, c.formatBoxRow(p95Str, avgStr, boxWidth))

	lines = append(lines, c.scheme.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))

	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *Console) formatBoxRow(left, right string, boxWidth int) string {
	// Account for ANSI codes when calculating padding
	leftVisible := stripANSI(left)
	rightVisible := stripANSI(right)

	colWidth := (boxWidth - 4) / 2 // 4 = 2 borders + 2 padding

	leftPadding := colWidth - len(leftVisible)
	if leftPadding < 0 {
		leftPadding = 0
	}

	rightPadding := colWidth - len(rightVisible)
	if rightPadding < 0 {
		rightPadding = 0
	}

	return fmt.Sprintf("%s %s%s%s %s%s %s",
		c.scheme.Dim.Sprint(boxVertical),
		left, strings.Repeat(" ", leftPadding),
		c.scheme.Dim.Sprint(boxVertical),
		right, strings.Repeat(" ", rightPadding),
		c.scheme.Dim.Sprint(boxVertical))
}

// renderProgressBar renders a progress bar.
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, empty) + "]"
}

// PrintProgressLine prints a one-line status update. Used when output
// is not a TTY (e.g. piped to a file or CI).
func (c *Console) PrintProgressLine(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | Workers: %d/%d | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveWorkers,
		stats.TargetWorkers,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(snap *metrics.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		c.writeln(fmt.Sprintf("requests=%d errors=%d error_rate=%.4f p95=%s",
			snap.TotalRequests, snap.FailedRequests, snap.ErrorRate,
			formatDurationShort(snap.Latency.P95)))
		return
	}

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	name := c.runName
	if name == "" {
		name = "load run"
	}

	c.writeln("")
	c.writeln(c.scheme.Border.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s",
		c.scheme.Title.Sprint(name),
		c.scheme.Good.Sprint("Completed ✓")))
	c.writeln(c.scheme.Border.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.scheme.Value.Sprint(formatDuration(snap.Elapsed))))
	c.writeln(fmt.Sprintf("Total Reqs:    %s", c.scheme.Value.Sprint(formatNumber(snap.TotalRequests))))
	c.writeln(fmt.Sprintf("Throughput:    %s", c.scheme.Value.Sprintf("%.1f req/s", snap.RPS)))

	successRate := 1.0 - snap.ErrorRate
	successColor := c.scheme.Good
	if successRate < 0.99 {
		successColor = c.scheme.Warn
	}
	if successRate < 0.95 {
		successColor = c.scheme.Bad
	}
	c.writeln(fmt.Sprintf("Success Rate:  %s", successColor.Sprintf("%.1f%%", successRate*100)))

	if snap.WorkerStartFailures > 0 || snap.WorkerStopFailures > 0 {
		c.writeln(fmt.Sprintf("Worker Errors: %s",
			c.scheme.Warn.Sprintf("%d start, %d stop", snap.WorkerStartFailures, snap.WorkerStopFailures)))
	}
	c.writeln("")

	c.writeln(c.scheme.Title.Sprint("Latency Distribution:"))
	c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(snap.Latency.Min)))
	c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(snap.Latency.P50)))
	c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(snap.Latency.P90)))
	c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(snap.Latency.P95)))
	c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(snap.Latency.P99)))
	c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(snap.Latency.Max)))
	c.writeln("")
}

// PrintTargetBreakdown prints per-variant latency statistics.
func (c *Console) PrintTargetBreakdown(targets map[string]metrics.LatencyStats) {
	if c.quiet || len(targets) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(c.scheme.Title.Sprint("Per-Variant Latency:"))
	for name, stats := range targets {
		c.writeln(fmt.Sprintf("  %s  reqs=%s p50=%s p95=%s p99=%s",
			c.scheme.Highlight.Sprint(name),
			formatNumber(stats.Count),
			formatDurationShort(stats.P50),
			formatDurationShort(stats.P95),
			formatDurationShort(stats.P99)))
	}
	c.writeln("")
}

// write writes to the output without a newline.
func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromSnapshot creates LiveStats from a metrics snapshot.
func StatsFromSnapshot(
	snap *metrics.Snapshot,
	totalDuration time.Duration,
	targetWorkers int,
	currentStage, totalStages int,
	stageName string,
) *LiveStats {
	if snap == nil {
		return &LiveStats{
			TargetWorkers: targetWorkers,
			CurrentStage:  currentStage,
			TotalStages:   totalStages,
			Phase:         string(metrics.PhaseInit),
		}
	}

	progress := 0.0
	if totalDuration > 0 {
		progress = float64(snap.Elapsed) / float64(totalDuration)
		if progress > 1 {
			progress = 1
		}
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       snap.Elapsed,
		ActiveWorkers: snap.ActiveWorkers,
		TargetWorkers: targetWorkers,
		CurrentRPS:    snap.RPS,
		TotalRequests: snap.TotalRequests,
		Errors:        snap.FailedRequests,
		ErrorRate:     snap.ErrorRate,
		LatencyP95:    snap.Latency.P95,
		LatencyAvg:    snap.Latency.Mean,
		Phase:         string(snap.CurrentPhase),
		CurrentStage:  currentStage,
		TotalStages:   totalStages,
		StageName:     stageName,
	}
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}
