package secrets

import "strings"

const redactedPlaceholder = "<redacted>"

// Redact replaces any occurrence of the username or password in s with a
// placeholder. Host and remote directory are operational identifiers and
// legitimately appear in operator-facing messages.
func (c Credentials) Redact(s string) string {
	for _, value := range []string{c.Password, c.Username} {
		if value == "" {
			continue
		}
		s = strings.ReplaceAll(s, value, redactedPlaceholder)
	}
	return s
}

// RedactValue walks maps and slices replacing credential occurrences in
// every string value. Returns the redacted copy and whether anything changed.
func (c Credentials) RedactValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return v, false
	case string:
		red := c.Redact(v)
		return red, red != v
	case map[string]any:
		changed := false
		out := make(map[string]any, len(v))
		for k, child := range v {
			red, childChanged := c.RedactValue(child)
			if childChanged {
				changed = true
			}
			out[k] = red
		}
		return out, changed
	case []any:
		changed := false
		out := make([]any, len(v))
		for i, child := range v {
			red, childChanged := c.RedactValue(child)
			if childChanged {
				changed = true
			}
			out[i] = red
		}
		return out, changed
	case []string:
		changed := false
		out := make([]any, len(v))
		for i, child := range v {
			red, childChanged := c.RedactValue(child)
			if childChanged {
				changed = true
			}
			out[i] = red
		}
		return out, changed
	default:
		return v, false
	}
}

// RedactError rewrites an error message with credentials scrubbed while
// preserving the wrapped error chain for errors.Is classification.
func (c Credentials) RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := c.Redact(err.Error())
	if msg == err.Error() {
		return err
	}
	return &redactedError{err: err, msg: msg}
}

type redactedError struct {
	err error
	msg string
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
