package model

import (
	"strings"
	"time"
)

// Level is the severity of a LogRecord. Levels carry a total order so that
// "ERROR or more severe" is a meaningful filter.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Severity maps a level to its rank (DEBUG=0 .. CRITICAL=4).
// Unknown levels rank below DEBUG so they never pass an error filter.
func (l Level) Severity() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	case LevelCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(min Level) bool {
	return l.Severity() >= min.Severity()
}

// ParseLevel normalizes a level string. ok is false for unknown values.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarning, true
	case "ERROR":
		return LevelError, true
	case "CRITICAL", "FATAL":
		return LevelCritical, true
	default:
		return "", false
	}
}

// LogRecord is one entry in the log sink. Records are serialized one per line
// as JSON; the struct field order below is the documented field order of the
// wire format. Once appended a record is never mutated.
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Source    string            `json:"source"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}
