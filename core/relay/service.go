package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/relayops/sftprelay/core/infra/config"
	"github.com/relayops/sftprelay/core/infra/logging"
	"github.com/relayops/sftprelay/core/infra/metrics"
	"github.com/relayops/sftprelay/core/infra/secrets"
	"github.com/relayops/sftprelay/core/relay/filename"
	"github.com/relayops/sftprelay/core/relay/staging"
)

const component = "relay"

// Uploader transfers a local file to the remote endpoint.
type Uploader interface {
	Upload(ctx context.Context, localPath string, name filename.Sanitized, creds secrets.Credentials) error
}

// Service routes decoded uploads by mode. All fields are fixed at
// construction; requests share no mutable state.
type Service struct {
	mode        config.Mode
	allowedExts []string
	secretNames secrets.Names
	staging     *staging.Store
	resolver    secrets.Resolver
	uploader    Uploader
	metrics     metrics.UploadMetrics
}

// NewService wires the dispatcher. The resolver and uploader may be nil in
// TEST mode; they are only touched on the production path.
func NewService(cfg *config.Config, store *staging.Store, resolver secrets.Resolver, uploader Uploader, m metrics.UploadMetrics) *Service {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Service{
		mode:        cfg.Mode,
		allowedExts: cfg.Limits.AllowedExtensions,
		secretNames: secrets.Names{
			Host:      cfg.SecretNames.Host,
			Username:  cfg.SecretNames.Username,
			Password:  cfg.SecretNames.Password,
			RemoteDir: cfg.SecretNames.RemoteDir,
		},
		staging:  store,
		resolver: resolver,
		uploader: uploader,
		metrics:  m,
	}
}

// Mode reports the configured operating mode.
func (s *Service) Mode() config.Mode { return s.mode }

// HandleUpload validates and routes one decoded upload. Validation failures
// are returned before any external call; a failed result carries no
// credential material.
func (s *Service) HandleUpload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	s.metrics.IncUploadsReceived(string(req.Encoding))
	requestID := uuid.NewString()

	if len(req.Payload) == 0 {
		return s.fail(requestID, fmt.Errorf("%w: empty payload", ErrMalformedPayload))
	}
	name, err := filename.Sanitize(req.Filename, s.allowedExts)
	if err != nil {
		return s.fail(requestID, err)
	}

	logging.Info(component, "upload received",
		"request_id", requestID,
		"filename", name,
		"encoding", string(req.Encoding),
		"size_bytes", len(req.Payload),
		"mode", string(s.mode))

	if s.mode == config.ModeTest {
		return s.simulate(requestID, name, req.Payload)
	}
	return s.transfer(ctx, requestID, name, req.Payload)
}

// ListStaged reports the files currently in the staging area.
func (s *Service) ListStaged() ([]staging.StagedFile, error) {
	return s.staging.List()
}

// PreviewStaged sanitizes a requested name and returns a bounded preview of
// the matching staged file. A name that sanitizes to anything other than
// itself cannot refer to a staged file and is rejected.
func (s *Service) PreviewStaged(raw string) ([]string, error) {
	name, err := filename.Sanitize(raw, s.allowedExts)
	if err != nil {
		return nil, err
	}
	if name.String() != raw {
		return nil, fmt.Errorf("%w: %q does not name a staged file", filename.ErrInvalid, raw)
	}
	return s.staging.Preview(name)
}

func (s *Service) simulate(requestID string, name filename.Sanitized, payload []byte) (UploadResult, error) {
	path, err := s.staging.Write(name, payload)
	if err != nil {
		if errors.Is(err, filename.ErrPathEscape) {
			return s.fail(requestID, err)
		}
		return s.fail(requestID, fmt.Errorf("%w: stage %s: %v", ErrInternal, name, err))
	}

	logging.Info(component, "upload simulated", "request_id", requestID, "staged_path", path)
	s.metrics.IncUploadsCompleted(string(s.mode), string(StatusSuccess))
	s.metrics.ObserveUploadBytes(float64(len(payload)))
	return UploadResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s uploaded", name),
		Details: map[string]any{
			"request_id":      requestID,
			"size_bytes":      len(payload),
			"line_count":      countLines(payload),
			"sftp_connection": "simulated",
		},
	}, nil
}

func (s *Service) transfer(ctx context.Context, requestID string, name filename.Sanitized, payload []byte) (UploadResult, error) {
	creds, err := secrets.LoadCredentials(ctx, s.resolver, s.secretNames)
	if err != nil {
		return s.fail(requestID, err)
	}

	tmp, err := os.CreateTemp("", "sftprelay-*.csv")
	if err != nil {
		return s.fail(requestID, creds.RedactError(fmt.Errorf("%w: create temp file: %v", ErrInternal, err)))
	}
	tmpPath := tmp.Name()
	defer s.removeTemp(requestID, tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return s.fail(requestID, creds.RedactError(fmt.Errorf("%w: write temp file: %v", ErrInternal, err)))
	}
	if err := tmp.Close(); err != nil {
		return s.fail(requestID, creds.RedactError(fmt.Errorf("%w: close temp file: %v", ErrInternal, err)))
	}

	if err := s.uploader.Upload(ctx, tmpPath, name, creds); err != nil {
		return s.fail(requestID, creds.RedactError(err))
	}

	logging.Info(component, "upload transferred",
		"request_id", requestID,
		"filename", name,
		"remote_dir", creds.RemoteDir,
		"size_bytes", len(payload))
	s.metrics.IncUploadsCompleted(string(s.mode), string(StatusSuccess))
	s.metrics.ObserveUploadBytes(float64(len(payload)))
	return UploadResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s uploaded", name),
		Details: map[string]any{
			"request_id": requestID,
			"size_bytes": len(payload),
			"remote_dir": creds.RemoteDir,
		},
	}, nil
}

// removeTemp deletes the temporary payload copy. Removal failure is logged
// and does not change the outcome already determined.
func (s *Service) removeTemp(requestID, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn(component, "temp file not removed", "request_id", requestID, "path", path, "error", err)
	}
}

func (s *Service) fail(requestID string, err error) (UploadResult, error) {
	logging.Error(component, "upload failed", "request_id", requestID, "error", err)
	s.metrics.IncUploadsCompleted(string(s.mode), string(StatusError))
	return UploadResult{}, err
}

// countLines counts line-terminator bytes over the raw content, so it is
// well-defined for any byte payload. A trailing unterminated line is not
// counted.
func countLines(payload []byte) int {
	return bytes.Count(payload, []byte{'\n'})
}
