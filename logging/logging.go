// Package logging provides real-time console output for monitoring the
// delegation coordinator. The persisted result entries are the durable
// record; this output exists so an operator can watch lifecycles as
// they happen.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in stable order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Lifecycle logging methods ---
// Called by the registry as delegations move through their lifecycle.

// DelegationStarted logs a new delegation entering the running state.
func (l *Logger) DelegationStarted(key, agent, sessionID string) {
	l.Info("delegation_start", map[string]interface{}{
		"key":     key,
		"agent":   agent,
		"session": sessionID,
	})
}

// DelegationCompleted logs a delegation reaching a terminal state.
func (l *Logger) DelegationCompleted(key, status string, duration time.Duration) {
	l.Info("delegation_complete", map[string]interface{}{
		"key":      key,
		"status":   status,
		"duration": duration.String(),
	})
}

// WatchdogFired logs a delegation exceeding its maximum runtime.
func (l *Logger) WatchdogFired(key string, runtime time.Duration) {
	l.Warn("watchdog_fired", map[string]interface{}{
		"key":     key,
		"runtime": runtime.String(),
	})
}

// DispatchFailed logs an asynchronous prompt dispatch being rejected.
func (l *Logger) DispatchFailed(key string, err error) {
	l.Error("dispatch_failed", map[string]interface{}{
		"key":   key,
		"error": err.Error(),
	})
}

// PersistFailed logs a best-effort result write that did not land.
func (l *Logger) PersistFailed(scope, key string, err error) {
	l.Error("persist_failed", map[string]interface{}{
		"scope": scope,
		"key":   key,
		"error": err.Error(),
	})
}

// NotifyFailed logs a parent notification that could not be posted.
func (l *Logger) NotifyFailed(sessionID string, err error) {
	l.Warn("notify_failed", map[string]interface{}{
		"session": sessionID,
		"error":   err.Error(),
	})
}

// ScopeFallback logs a scope resolution that did not reach a root.
func (l *Logger) ScopeFallback(sessionID, scope, resolution string) {
	l.Debug("scope_fallback", map[string]interface{}{
		"session":    sessionID,
		"scope":      scope,
		"resolution": resolution,
	})
}
