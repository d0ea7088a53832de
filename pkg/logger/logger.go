// Package logger is a colored console façade over logrus: callers get the
// same Debug/Info/Warn/Error/Success/Fatal vocabulary regardless of which
// logging library sits underneath.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[37m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Log levels, kept for API compatibility with callers that set a threshold
// below logrus's own Warn/Error/Info naming.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

// Logger wraps a logrus.Logger with the colored, leveled console format.
type Logger struct {
	level int
	base  *logrus.Logger
}

var defaultLogger *Logger

func init() {
	base := logrus.New()
	// Level filtering is done by Logger.level; let every level through logrus.
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	defaultLogger = &Logger{level: LevelInfo, base: base}
}

// SetLevel sets the minimum log level.
func SetLevel(level int) {
	defaultLogger.level = level
}

// SetTimeFormat sets the logrus timestamp format and re-enables timestamps.
func SetTimeFormat(format string) {
	defaultLogger.base.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: format,
		DisableColors:   true,
	})
}

// ShowTime enables or disables the timestamp prefix.
func ShowTime(show bool) {
	defaultLogger.base.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !show,
		DisableColors:    true,
	})
}

// Fields is structured context attached to a log line alongside its
// message — e.g. packet_number, stream_id, rtt_us on reliability-engine
// log lines — so a log aggregator can query on them instead of scraping
// the formatted message.
type Fields map[string]interface{}

func (l *Logger) emit(level int, color, prefix, msg string, fields Fields) {
	if l.level > level {
		return
	}
	entry := l.base.WithField("prefix", prefix)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	line := fmt.Sprintf("%s[%s]%s %s", color, prefix, ColorReset, msg)
	switch {
	case level >= LevelError:
		entry.Error(line)
	case level >= LevelWarn:
		entry.Warn(line)
	case level >= LevelDebug && level < LevelInfo:
		entry.Debug(line)
	default:
		entry.Info(line)
	}
}

// Debug logs a debug message (gray).
func Debug(format string, args ...interface{}) {
	defaultLogger.emit(LevelDebug, ColorGray, "DEBUG", fmt.Sprintf(format, args...), nil)
}

// DebugFields logs a debug message (gray) with structured fields attached.
func DebugFields(fields Fields, format string, args ...interface{}) {
	defaultLogger.emit(LevelDebug, ColorGray, "DEBUG", fmt.Sprintf(format, args...), fields)
}

// Info logs an informational message (white).
func Info(format string, args ...interface{}) {
	defaultLogger.emit(LevelInfo, ColorWhite, "INFO", fmt.Sprintf(format, args...), nil)
}

// InfoFields logs an informational message (white) with structured fields
// attached.
func InfoFields(fields Fields, format string, args ...interface{}) {
	defaultLogger.emit(LevelInfo, ColorWhite, "INFO", fmt.Sprintf(format, args...), fields)
}

// Warn logs a warning message (yellow).
func Warn(format string, args ...interface{}) {
	defaultLogger.emit(LevelWarn, ColorYellow, "WARN", fmt.Sprintf(format, args...), nil)
}

// WarnFields logs a warning message (yellow) with structured fields
// attached.
func WarnFields(fields Fields, format string, args ...interface{}) {
	defaultLogger.emit(LevelWarn, ColorYellow, "WARN", fmt.Sprintf(format, args...), fields)
}

// Error logs an error message (red).
func Error(format string, args ...interface{}) {
	defaultLogger.emit(LevelError, ColorRed, "ERROR", fmt.Sprintf(format, args...), nil)
}

// Success logs a success message (green).
func Success(format string, args ...interface{}) {
	defaultLogger.emit(LevelSuccess, ColorGreen, "SUCCESS", fmt.Sprintf(format, args...), nil)
}

// Fatal logs a fatal error and exits.
func Fatal(format string, args ...interface{}) {
	defaultLogger.base.WithField("prefix", "FATAL").Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// InfoCyan logs an info message in cyan, for highlighting connection events.
func InfoCyan(format string, args ...interface{}) {
	defaultLogger.emit(LevelInfo, ColorCyan, "INFO", fmt.Sprintf(format, args...), nil)
}

// Section prints a section header straight to stdout, bypassing logrus —
// it's a banner, not a log record.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, title, ColorCyan, ColorReset)
	fmt.Printf("%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}

// Banner prints the application banner for a given title and version.
func Banner(title, version string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, "", ColorCyan, ColorReset)
	fmt.Printf("%s║%s   %s%-54s%s║%s\n", ColorCyan, ColorReset, ColorCyan, title, ColorReset, ColorReset)
	fmt.Printf("%s║%s   %sversion %-46s%s║%s\n", ColorCyan, ColorReset, ColorGreen, version, ColorReset, ColorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, "", ColorCyan, ColorReset)
	fmt.Printf("%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}
