// Package logging provides component-prefixed key/value logging on top of
// the standard log package. Output is plain text by default; setting
// RELAY_LOG_FORMAT=json switches every line to a single JSON object.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

const envLogFormat = "RELAY_LOG_FORMAT"

var (
	logFormatOnce sync.Once
	logAsJSON     bool
)

func useJSON() bool {
	logFormatOnce.Do(func() {
		logAsJSON = strings.EqualFold(strings.TrimSpace(os.Getenv(envLogFormat)), "json")
	})
	return logAsJSON
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...any) {
	emit("info", component, msg, kv...)
}

// Warn logs a warning with key/value fields.
func Warn(component, msg string, kv ...any) {
	emit("warn", component, msg, kv...)
}

// Error logs an error message with key/value fields.
func Error(component, msg string, kv ...any) {
	emit("error", component, msg, kv...)
}

func emit(level, component, msg string, kv ...any) {
	if useJSON() {
		entry := map[string]string{
			"level":     level,
			"component": component,
			"msg":       msg,
		}
		fields := pad(kv)
		for i := 0; i+1 < len(fields); i += 2 {
			entry[toString(fields[i])] = toString(fields[i+1])
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("[%s] %s%s", strings.ToUpper(component), msg, formatFields(kv...))
			return
		}
		log.Print(string(data))
		return
	}
	prefix := ""
	if level != "info" {
		prefix = strings.ToUpper(level) + " "
	}
	log.Printf("[%s] %s%s%s", strings.ToUpper(component), prefix, msg, formatFields(kv...))
}

func pad(kv []any) []any {
	if len(kv)%2 != 0 {
		return append(kv, "(missing)")
	}
	return kv
}

func formatFields(kv ...any) string {
	kv = pad(kv)
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return flatten(t.Error())
	default:
		return flatten(fmt.Sprintf("%v", t))
	}
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
