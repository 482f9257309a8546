// Package config loads immutable service configuration at startup from
// environment variables, with an optional YAML limits file for tunables.
// The resulting Config is passed explicitly into component constructors;
// nothing reads configuration at request time.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Mode selects the upload destination: TEST stages files locally,
// PRODUCTION performs the real SFTP transfer.
type Mode string

const (
	ModeTest       Mode = "TEST"
	ModeProduction Mode = "PRODUCTION"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = ":9092"
	defaultStagingDir  = "/tmp/sftp-relay-staging"

	envMode          = "RELAY_MODE"
	envHTTPAddr      = "RELAY_HTTP_ADDR"
	envMetricsAddr   = "RELAY_METRICS_ADDR"
	envStagingDir    = "RELAY_STAGING_DIR"
	envLimitsPath    = "RELAY_LIMITS_PATH"
	envSecretProject = "RELAY_SECRET_PROJECT"

	envSecretHost      = "RELAY_SECRET_NAME_HOST"
	envSecretUsername  = "RELAY_SECRET_NAME_USERNAME"
	envSecretPassword  = "RELAY_SECRET_NAME_PASSWORD" // #nosec G101 -- env var name, not a credential.
	envSecretRemoteDir = "RELAY_SECRET_NAME_DIRECTORY"
)

// SecretNames holds the logical names of the secrets resolved for a
// production transfer, not their values.
type SecretNames struct {
	Host      string
	Username  string
	Password  string
	RemoteDir string
}

// Config holds runtime configuration for the relay service.
type Config struct {
	Mode          Mode
	HTTPAddr      string
	MetricsAddr   string
	StagingDir    string
	SecretProject string
	SecretNames   SecretNames
	Limits        Limits
}

// Load returns configuration from environment variables with sane defaults.
// The mode defaults to TEST so a misconfigured deployment never transfers
// data to the partner endpoint by accident.
func Load() (*Config, error) {
	mode, err := parseMode(os.Getenv(envMode))
	if err != nil {
		return nil, err
	}

	limits, err := LoadLimits(os.Getenv(envLimitsPath))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode:          mode,
		HTTPAddr:      envOr(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr:   envOr(envMetricsAddr, defaultMetricsAddr),
		StagingDir:    envOr(envStagingDir, defaultStagingDir),
		SecretProject: os.Getenv(envSecretProject),
		SecretNames: SecretNames{
			Host:      envOr(envSecretHost, "SFTP_HOST"),
			Username:  envOr(envSecretUsername, "SFTP_USERNAME"),
			Password:  envOr(envSecretPassword, "SFTP_PASSWORD"),
			RemoteDir: envOr(envSecretRemoteDir, "SFTP_DIRECTORY"),
		},
		Limits: limits,
	}

	if cfg.Mode == ModeProduction && cfg.SecretProject == "" {
		return nil, fmt.Errorf("%s is required in PRODUCTION mode", envSecretProject)
	}
	return cfg, nil
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(ModeTest):
		return ModeTest, nil
	case string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unknown %s value %q (want TEST or PRODUCTION)", envMode, raw)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
