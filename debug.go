package pocket

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// maxLogBody bounds how much of a request or response body the debug
// log records per entry.
const maxLogBody = 2048

// DebugLogger records receipt-service traffic and sync activity when
// debug mode is on. All methods are safe on a nil receiver and become
// no-ops, so callers never need to guard logging sites.
type DebugLogger struct {
	mu      sync.Mutex
	enabled bool
	writer  io.Writer
}

// NewDebugLogger creates a debug logger. With an empty logPath entries
// go to stderr; otherwise the file is opened in append mode.
func NewDebugLogger(enabled bool, logPath string) (*DebugLogger, error) {
	var writer io.Writer = os.Stderr

	if enabled && logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		writer = f
	}

	return &DebugLogger{
		enabled: enabled,
		writer:  writer,
	}, nil
}

// Close releases the log file when one is open. Logging to stderr
// leaves nothing to close.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stderr {
		return closer.Close()
	}
	return nil
}

// Log writes a formatted entry if logging is enabled.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	_, _ = fmt.Fprintf(l.writer, "%s pocket: %s\n", ts, fmt.Sprintf(format, args...))
}

// LogRequest records an outgoing HTTP request and its body, if any.
func (l *DebugLogger) LogRequest(method, url string, body []byte) {
	if l == nil || !l.enabled {
		return
	}
	if len(body) > 0 {
		l.Log("-> %s %s %s", method, url, truncateForLog(body))
		return
	}
	l.Log("-> %s %s", method, url)
}

// LogResponse records the status line of an HTTP response.
func (l *DebugLogger) LogResponse(statusCode int, status string) {
	if l == nil || !l.enabled {
		return
	}
	l.Log("<- %d %s", statusCode, status)
}

// LogError records a failed operation with the full error chain.
func (l *DebugLogger) LogError(operation string, err error) {
	if l == nil || !l.enabled {
		return
	}
	l.Log("error %s: %v", operation, err)
}

// LogSync records drain and merge activity from the sync engine.
func (l *DebugLogger) LogSync(operation string, details string) {
	if l == nil || !l.enabled {
		return
	}
	l.Log("sync %s: %s", operation, details)
}

func truncateForLog(b []byte) string {
	if len(b) <= maxLogBody {
		return string(b)
	}
	return fmt.Sprintf("%s... [%d bytes total]", b[:maxLogBody], len(b))
}
