package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// logLevels orders the four levels this logger understands so allowed
// can compare a candidate entry against the configured floor.
var logLevels = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Environment variables that seed a TelemetryLogger when no explicit
// configuration is given. WPR_LOG_FORMAT is the override this module's
// own ambient-stack documentation names.
const (
	envLogLevel  = "WPR_LOG_LEVEL"
	envDebug     = "WPR_DEBUG"
	envLogFormat = "WPR_LOG_FORMAT"
)

// TelemetryLogger is the logger the telemetry package uses on itself
// (metric emission failures, exporter setup, cardinality drops). It
// can't depend on anything in the packages it instruments, so it stays
// a small, self-contained implementation rather than a wrapper around a
// shared logger:
//
//   - text locally, JSON under Kubernetes (or whatever WPR_LOG_FORMAT
//     forces)
//   - rate-limits ERROR lines so a stuck circuit breaker or a failing
//     exporter can't flood stdout
//   - every emitted line also feeds emitLogMetric, once a Registry
//     exists, so telemetry operations are themselves observable
type TelemetryLogger struct {
	mu sync.RWMutex

	level       string
	debug       bool
	format      string
	serviceName string
	output      io.Writer

	errorLimiter   *RateLimiter
	metricsEnabled bool
}

var (
	telemetryLogger     *TelemetryLogger
	telemetryLoggerOnce sync.Once
)

// NewTelemetryLogger returns the process-wide telemetry logger, creating
// it on first call with serviceName. Later calls return the same
// instance regardless of the name passed in.
//
// Resolution order for level/debug/format: WPR_LOG_LEVEL / WPR_DEBUG /
// WPR_LOG_FORMAT first, then Kubernetes auto-detection for format, then
// the INFO/text defaults.
func NewTelemetryLogger(serviceName string) *TelemetryLogger {
	telemetryLoggerOnce.Do(func() {
		telemetryLogger = newTelemetryLoggerFromEnv(serviceName)
	})
	return telemetryLogger
}

func newTelemetryLoggerFromEnv(serviceName string) *TelemetryLogger {
	level := strings.ToUpper(os.Getenv(envLogLevel))
	if level == "" {
		level = "INFO"
	}

	debug := os.Getenv(envDebug) == "true" || level == "DEBUG"

	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if override := os.Getenv(envLogFormat); override != "" {
		format = override
	}

	return &TelemetryLogger{
		level:        level,
		debug:        debug,
		format:       format,
		serviceName:  serviceName,
		output:       os.Stdout,
		errorLimiter: NewRateLimiter(1 * time.Second),
	}
}

// GetLogger returns the process-wide logger. Whichever of GetLogger and
// NewTelemetryLogger runs first creates it and fixes its service name for
// the life of the process; when GetLogger creates it, the name is the
// active Registry's ServiceName if a Registry exists at that moment, and
// "wpr-runtime" otherwise. Code that runs before Initialize, or in a
// program that never calls it, still gets a usable logger.
func GetLogger() *TelemetryLogger {
	telemetryLoggerOnce.Do(func() {
		serviceName := "wpr-runtime"
		if registry := globalRegistry.Load(); registry != nil {
			if r, ok := registry.(*Registry); ok && r.config.ServiceName != "" {
				serviceName = r.config.ServiceName
			}
		}
		telemetryLogger = newTelemetryLoggerFromEnv(serviceName)
	})
	return telemetryLogger
}

func (l *TelemetryLogger) Info(msg string, fields map[string]interface{}) {
	l.emit("INFO", msg, fields)
}

func (l *TelemetryLogger) Warn(msg string, fields map[string]interface{}) {
	l.emit("WARN", msg, fields)
}

func (l *TelemetryLogger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.emit("ERROR", msg, fields)
}

func (l *TelemetryLogger) Debug(msg string, fields map[string]interface{}) {
	if !l.debug {
		return
	}
	l.emit("DEBUG", msg, fields)
}

func (l *TelemetryLogger) emit(level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.allowed(level) {
		return
	}

	ts := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.writeJSON(ts, level, msg, fields)
	} else {
		l.writeText(ts, level, msg, fields)
	}
	l.emitLogMetric(level, fields)
}

func (l *TelemetryLogger) allowed(level string) bool {
	current, ok1 := logLevels[l.level]
	candidate, ok2 := logLevels[level]
	if !ok1 || !ok2 {
		return true
	}
	return candidate >= current
}

func (l *TelemetryLogger) writeJSON(ts, level, msg string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp": ts,
		"level":     level,
		"service":   l.serviceName,
		"component": "telemetry",
		"message":   msg,
	}
	for k, v := range fields {
		switch k {
		case "timestamp", "level", "service", "message":
			continue
		}
		entry[k] = v
	}
	if data, err := json.Marshal(entry); err == nil {
		fmt.Fprintln(l.output, string(data))
	}
}

// promotedTextFields lists the fields worth pulling to the front of a
// text log line before the rest are dumped key=value in map order.
var promotedTextFields = []string{"endpoint", "error", "action", "impact"}

func (l *TelemetryLogger) writeText(ts, level, msg string, fields map[string]interface{}) {
	var b strings.Builder
	if len(fields) > 0 {
		b.WriteString(" ")
		remaining := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			remaining[k] = v
		}
		for _, key := range promotedTextFields {
			if v, ok := remaining[key]; ok {
				fmt.Fprintf(&b, "%s=%q ", key, fmt.Sprintf("%v", v))
				delete(remaining, key)
			}
		}
		for k, v := range remaining {
			fmt.Fprintf(&b, "%s=%v ", k, v)
		}
	}
	fmt.Fprintf(l.output, "%s [%s] [telemetry:%s] %s%s\n", ts, level, l.serviceName, msg, b.String())
}

func (l *TelemetryLogger) emitLogMetric(level string, fields map[string]interface{}) {
	if !l.metricsEnabled || globalRegistry.Load() == nil {
		return
	}
	labels := []string{"level", level, "service", l.serviceName, "component", "telemetry"}
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "provider":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}
	Emit(MetricTelemetryOperations, 1.0, labels...)
}

// SetLevel changes the minimum level this logger emits.
func (l *TelemetryLogger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = strings.ToUpper(level)
	l.debug = l.level == "DEBUG"
}

// SetFormat switches between "json" and "text" output.
func (l *TelemetryLogger) SetFormat(format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
}

// SetOutput redirects where log lines are written; tests use this to
// capture output instead of writing to stdout.
func (l *TelemetryLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// EnableMetrics turns on emitLogMetric once a Registry is available.
func (l *TelemetryLogger) EnableMetrics() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metricsEnabled = true
}
