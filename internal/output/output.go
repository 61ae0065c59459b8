// Package output provides formatted terminal output for one-shot actions.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/action"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Result statuses understood by ActionResult.
const (
	StatusOK      = "ok"
	StatusOffline = "offline"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// ActionStart prints the banner for an action against target.
func (o *Output) ActionStart(name, target string) {
	o.printf("%s %s %s\n", o.color(colorBold, strings.ToUpper(name)), o.color(colorGray, "→"), target)
}

// ActionResult prints the action result in a single line.
// Format: [indicator] name - status (duration)
func (o *Output) ActionResult(name, status, message string, d time.Duration) {
	var indicator, statusColor string

	switch status {
	case StatusOK:
		indicator = "✓"
		statusColor = colorGreen
	case StatusOffline:
		indicator = "○"
		statusColor = colorYellow
	case StatusTimeout:
		indicator = "⏱"
		statusColor = colorYellow
	case StatusFailed:
		indicator = "✗"
		statusColor = colorRed
	default:
		indicator = "?"
		statusColor = colorGray
	}

	o.printf("  %s %s %s %s\n",
		o.color(statusColor, indicator),
		name,
		o.color(statusColor, status),
		o.color(colorGray, fmt.Sprintf("(%.2fs)", d.Seconds())))

	if message != "" {
		o.printf("    %s %s\n", o.color(colorGray, "→"), message)
	}
}

// Data prints result data as sorted key/value lines in debug mode.
func (o *Output) Data(data map[string]any) {
	if !o.debug || len(data) == 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.printf("      %s %v\n", o.color(colorGray, k+":"), data[k])
	}
}

// Report prints the details of a status check.
func (o *Output) Report(r *action.Report) {
	if r == nil || !r.Online {
		return
	}
	if u := r.Uptime; u != nil {
		o.printf("      %s %s\n", o.color(colorGray, "up:"), u.Up)
		if u.Users >= 0 {
			o.printf("      %s %d\n", o.color(colorGray, "users:"), u.Users)
		}
		o.printf("      %s %.2f %.2f %.2f\n", o.color(colorGray, "load:"), u.Load[0], u.Load[1], u.Load[2])
		return
	}
	if r.Details != "" {
		for _, line := range strings.Split(r.Details, "\n") {
			o.printf("      %s\n", line)
		}
	}
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
