// Package debug routes optional diagnostic logging through slog, gated
// by named categories so wire-level detail stays quiet by default.
//
// Categories select what to log (EMPFANG_DEBUG env or config), the
// level selects how much (EMPFANG_LOG_LEVEL env or config):
//
//	debug.Log("client", "request", "method", "POST", "url", url)
//	if debug.Enabled("client") { /* expensive formatting */ }
//
// Known categories: client, streaming, accumulator, auth, storage,
// mcp, config, all. Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. TRACE output includes full
// untruncated request and response bodies.
const LevelTrace = slog.LevelDebug - 4

// categories is the enabled category set. It is only written by init()
// and Init(), so lookups need no locking.
var categories map[string]bool

func init() {
	// Environment seeding makes the package usable before Init runs.
	categories = parseCategories(os.Getenv("EMPFANG_DEBUG"))
}

// Init applies the configured categories and log level. The environment
// wins over config so a deployed binary can be inspected without
// editing its config file.
func Init(configCategories string, configLevel string) {
	cats := os.Getenv("EMPFANG_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("EMPFANG_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}
	if level == "" {
		level = "INFO"
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether the category is active. Guard expensive
// argument construction with it before calling Log.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug record tagged with the category. Disabled
// categories cost one map lookup.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a record at TRACE level for the category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether the category would emit at TRACE.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes text straight to stderr, skipping slog formatting so
// HTTP bodies and SSE payloads come out copy-paste clean. It emits
// only when the category is enabled at TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall
// back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories lists the enabled categories, in no particular order.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate shortens s to maxLen bytes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
