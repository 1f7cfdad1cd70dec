package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// output is where all log lines are written. Everything goes to stderr:
// stdout carries command results and, in stdio proxy mode, MCP frames.
// Overridable for tests.
var output io.Writer = os.Stderr

// SetOutput redirects log output. Intended for tests.
func SetOutput(w io.Writer) {
	output = w
}

// writeLog formats the message with optional fields and writes it.
func (l *Logger) writeLog(level, msg string, fields map[string]interface{}) {
	logMsg := fmt.Sprintf("[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)

	if len(fields) > 0 {
		logMsg += " |"
		for k, v := range fields {
			logMsg += fmt.Sprintf(" %s=%v", k, v)
		}
	}

	fmt.Fprintf(output, "%s\n", logMsg)
}

// logf is the internal logging function for formatted messages
func (l *Logger) logf(level, msg string, args ...interface{}) {
	formattedMsg := fmt.Sprintf(msg, args...)

	contextFields := extractContextFields(l.ctx)
	var mergedFields map[string]interface{}

	if contextFields != nil || len(l.fields) > 0 {
		mergedFields = make(map[string]interface{})
		for k, v := range contextFields {
			mergedFields[k] = v
		}
		for k, v := range l.fields {
			mergedFields[k] = v
		}
	}

	l.writeLog(level, formattedMsg, mergedFields)
}

// GetTimestamp returns a formatted timestamp.
// Uses RFC3339 for sortability; can be overridden via LOG_TIMESTAMP env var
// for deterministic test output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
