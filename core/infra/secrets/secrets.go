// Package secrets resolves transfer credentials from an external secret
// store and scrubs resolved values out of anything that leaves the process.
// Credentials are resolved fresh per upload and never cached, so rotations
// take effect on the next request.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a missing, empty, or unreadable secret.
var ErrUnavailable = errors.New("secret_unavailable")

// Resolver returns the current value of a named secret.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Names holds the logical names of the four secrets a transfer needs.
type Names struct {
	Host      string
	Username  string
	Password  string
	RemoteDir string
}

// Credentials are the resolved transfer credentials. They live in process
// memory for the duration of one upload and are never persisted or logged.
type Credentials struct {
	Host      string
	Username  string
	Password  string
	RemoteDir string
}

// LoadCredentials resolves all four secrets, failing on the first missing
// or empty value with an error that names the logical secret. No transfer
// connection is attempted until this succeeds.
func LoadCredentials(ctx context.Context, r Resolver, names Names) (Credentials, error) {
	var creds Credentials
	for _, field := range []struct {
		name string
		dst  *string
	}{
		{names.Host, &creds.Host},
		{names.Username, &creds.Username},
		{names.Password, &creds.Password},
		{names.RemoteDir, &creds.RemoteDir},
	} {
		value, err := r.Resolve(ctx, field.name)
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: secret %q: %v", ErrUnavailable, field.name, err)
		}
		if strings.TrimSpace(value) == "" {
			return Credentials{}, fmt.Errorf("%w: secret %q resolved to an empty value", ErrUnavailable, field.name)
		}
		*field.dst = value
	}
	return creds, nil
}

// Static is a fixed-map Resolver for tests and local development.
type Static map[string]string

func (s Static) Resolve(_ context.Context, name string) (string, error) {
	value, ok := s[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return value, nil
}
