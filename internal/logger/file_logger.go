package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger is the session logger shared by the engine, risk manager and collaborators
type Logger struct {
	name    string
	logFile *os.File
	logPath string
	logger  *log.Logger
	debug   bool
	now     func() time.Time
	mu      sync.Mutex
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

const timestampLayout = "2006-01-02 15:04:05"

// NewLogger creates a session logger writing to logs/<name>_<date>.log and stdout
func NewLogger(logDir, name string, debug bool) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.log", name, time.Now().UTC().Format("2006-01-02"))
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(io.MultiWriter(file, os.Stdout), name, debug)
	l.logFile = file
	l.logPath = logPath
	l.writeSessionHeader()

	return l, nil
}

// New creates a logger on an arbitrary writer, without a session file
func New(w io.Writer, name string, debug bool) *Logger {
	return &Logger{
		name:   name,
		logger: log.New(w, "", 0),
		debug:  debug,
		now:    time.Now,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return New(io.Discard, "nop", false)
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule := strings.Repeat("=", 80)
	l.logger.Printf("\n%s\nTRADING SESSION STARTED\n%s\nSession: %s\nStarted: %s\nLog File: %s\n%s\n",
		rule, rule, l.name, l.now().UTC().Format(timestampLayout), l.logPath, rule)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level == LogLevelDebug && !l.debug {
		return
	}

	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", l.now().UTC().Format(timestampLayout), level, message)
}

// Debug logs a message only when debug output is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(LogLevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs engine and portfolio status
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// SetDebug toggles debug output at runtime
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

// GetLogPath returns the session log file path, empty for writer-backed loggers
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}

	rule := strings.Repeat("=", 80)
	l.logger.Printf("\n%s\nTRADING SESSION ENDED\n%s\nEnded: %s\n%s\n\n",
		rule, rule, l.now().UTC().Format(timestampLayout), rule)

	err := l.logFile.Close()
	l.logFile = nil
	return err
}
