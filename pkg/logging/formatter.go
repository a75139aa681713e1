/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Custom log formatter for the Akaylee EVM fuzzer. Prints a timestamp, the
level, an optional fuzzer prefix derived from the message and sorted structured
fields, with ANSI colors when enabled.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomFormatter provides readable, structured logging output
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
	Prefixes  bool // Tag fuzzer events such as [BUG] or [STATS]
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var output strings.Builder

	if f.Timestamp {
		timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
		output.WriteString(f.colorize(36, timestamp)) // Cyan
		output.WriteString(" ")
	}

	level := strings.ToUpper(entry.Level.String())
	output.WriteString(f.colorize(f.getLevelColor(entry.Level), level))
	output.WriteString(" ")

	if f.Prefixes {
		if prefix := fuzzerPrefix(entry.Message); prefix != "" {
			output.WriteString(f.colorize(35, "["+prefix+"]")) // Magenta
			output.WriteString(" ")
		}
	}

	if f.Caller && entry.HasCaller() {
		caller := fmt.Sprintf("[%s:%d]", entry.Caller.File, entry.Caller.Line)
		output.WriteString(f.colorize(33, caller)) // Yellow
		output.WriteString(" ")
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

func (f *CustomFormatter) colorize(color int, text string) string {
	if !f.Colors {
		return text
	}
	return fmt.Sprintf("\033[%dm%s\033[0m", color, text)
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return 37 // White
	case logrus.InfoLevel:
		return 32 // Green
	case logrus.WarnLevel:
		return 33 // Yellow
	case logrus.ErrorLevel:
		return 31 // Red
	default:
		return 35 // Magenta
	}
}

// fuzzerPrefix returns a tag for well-known fuzzer messages
func fuzzerPrefix(message string) string {
	switch {
	case strings.HasPrefix(message, "Bug found"):
		return "BUG"
	case strings.HasPrefix(message, "Fuzzing progress"):
		return "STATS"
	case strings.HasPrefix(message, "Test case added"):
		return "CORPUS"
	case strings.HasPrefix(message, "Contract deployed"):
		return "DEPLOY"
	case strings.HasPrefix(message, "Forking"):
		return "FORK"
	case strings.HasPrefix(message, "Campaign"), strings.HasPrefix(message, "Dispatching"):
		return "CAMPAIGN"
	default:
		return ""
	}
}

// formatFields formats structured fields sorted by key
func (f *CustomFormatter) formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, f.colorize(34, key)+"="+f.colorize(32, formatValue(fields[key]))) // Blue key, Green value
	}
	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case string:
		if len(v) > 80 {
			return fmt.Sprintf("%s...", v[:80])
		}
		return v
	case []byte:
		if len(v) > 36 {
			return fmt.Sprintf("[%d bytes]", len(v))
		}
		return fmt.Sprintf("0x%x", v)
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
