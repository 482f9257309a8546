package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validStatic() Static {
	return Static{
		"SFTP_HOST":      "sftp.partner.example",
		"SFTP_USERNAME":  "relay-user",
		"SFTP_PASSWORD":  "hunter2",
		"SFTP_DIRECTORY": "/inbound/reports",
	}
}

func defaultNames() Names {
	return Names{
		Host:      "SFTP_HOST",
		Username:  "SFTP_USERNAME",
		Password:  "SFTP_PASSWORD",
		RemoteDir: "SFTP_DIRECTORY",
	}
}

func TestLoadCredentials(t *testing.T) {
	creds, err := LoadCredentials(context.Background(), validStatic(), defaultNames())
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.Host != "sftp.partner.example" || creds.Password != "hunter2" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestLoadCredentialsNamesMissingSecret(t *testing.T) {
	store := validStatic()
	delete(store, "SFTP_PASSWORD")

	_, err := LoadCredentials(context.Background(), store, defaultNames())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "SFTP_PASSWORD") {
		t.Fatalf("error should name the missing secret: %v", err)
	}
}

func TestLoadCredentialsRejectsEmptyValue(t *testing.T) {
	store := validStatic()
	store["SFTP_DIRECTORY"] = "  "

	_, err := LoadCredentials(context.Background(), store, defaultNames())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "SFTP_DIRECTORY") {
		t.Fatalf("error should name the empty secret: %v", err)
	}
}

func TestRedactScrubsCredentialValues(t *testing.T) {
	creds := Credentials{Username: "relay-user", Password: "hunter2", Host: "sftp.partner.example"}

	got := creds.Redact("ssh: auth failed for relay-user with password hunter2 at sftp.partner.example")
	if strings.Contains(got, "hunter2") || strings.Contains(got, "relay-user") {
		t.Fatalf("credentials leaked: %s", got)
	}
	if !strings.Contains(got, "sftp.partner.example") {
		t.Fatalf("host should survive redaction: %s", got)
	}
}

func TestRedactValueWalksCollections(t *testing.T) {
	creds := Credentials{Password: "hunter2"}
	payload := map[string]any{
		"message": "login with hunter2",
		"nested":  []any{"ok", "pw=hunter2"},
	}

	redacted, changed := creds.RedactValue(payload)
	if !changed {
		t.Fatalf("expected redaction to report changes")
	}
	out := redacted.(map[string]any)
	if strings.Contains(out["message"].(string), "hunter2") {
		t.Fatalf("value not redacted: %v", out)
	}
	if strings.Contains(out["nested"].([]any)[1].(string), "hunter2") {
		t.Fatalf("nested value not redacted: %v", out)
	}
}

func TestRedactErrorPreservesChain(t *testing.T) {
	creds := Credentials{Password: "hunter2"}
	base := errors.New("transfer_failure")
	wrapped := fmt.Errorf("%w: auth with hunter2 rejected", base)

	red := creds.RedactError(wrapped)
	if strings.Contains(red.Error(), "hunter2") {
		t.Fatalf("password leaked: %v", red)
	}
	if !errors.Is(red, base) {
		t.Fatalf("sentinel lost through redaction")
	}

	clean := errors.New("no credentials here")
	if creds.RedactError(clean) != clean {
		t.Fatalf("clean error should pass through unchanged")
	}
	if creds.RedactError(nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestStaticResolverMiss(t *testing.T) {
	_, err := Static{}.Resolve(context.Background(), "ABSENT")
	if err == nil {
		t.Fatalf("expected error for absent secret")
	}
}
