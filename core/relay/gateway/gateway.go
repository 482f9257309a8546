// Package gateway exposes the relay over HTTP: a health endpoint, the
// upload endpoint accepting the two supported encodings, and the test-mode
// inspection endpoint. Metrics are served on a separate listener.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/relayops/sftprelay/core/infra/buildinfo"
	"github.com/relayops/sftprelay/core/infra/config"
	"github.com/relayops/sftprelay/core/infra/logging"
	"github.com/relayops/sftprelay/core/infra/metrics"
	"github.com/relayops/sftprelay/core/infra/schema"
	"github.com/relayops/sftprelay/core/infra/secrets"
	"github.com/relayops/sftprelay/core/relay"
	"github.com/relayops/sftprelay/core/relay/filename"
	"github.com/relayops/sftprelay/core/relay/staging"
	"github.com/relayops/sftprelay/core/relay/transfer"
)

const component = "gateway"

const metricsNamespace = "sftprelay"

type server struct {
	cfg         *config.Config
	svc         *relay.Service
	httpMetrics metrics.HTTPMetrics
	started     time.Time
}

// Run wires the service for the configured mode and serves HTTP until the
// listener fails. The secret resolver and SFTP client are only constructed
// in PRODUCTION mode; TEST mode runs entirely against the staging store.
func Run(cfg *config.Config) error {
	store := staging.NewStore(cfg.StagingDir, cfg.Limits.PreviewLines)

	var resolver secrets.Resolver
	var uploader relay.Uploader
	if cfg.Mode == config.ModeProduction {
		google, err := secrets.NewGoogle(context.Background(), cfg.SecretProject)
		if err != nil {
			return fmt.Errorf("secret resolver: %w", err)
		}
		defer func() { _ = google.Close() }()
		resolver = google
		uploader = transfer.NewClient()
	}

	svc := relay.NewService(cfg, store, resolver, uploader, metrics.NewProm(metricsNamespace))
	s := &server{
		cfg:         cfg,
		svc:         svc,
		httpMetrics: metrics.NewHTTPProm(metricsNamespace),
		started:     time.Now(),
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logging.Info(component, "metrics listening", "addr", cfg.MetricsAddr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(component, "metrics server error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logging.Info(component, "listening", "addr", cfg.HTTPAddr, "mode", string(cfg.Mode))
	return srv.ListenAndServe()
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.instrumented("/", s.handleHealth))
	mux.HandleFunc("POST /upload", s.instrumented("/upload", s.handleUpload))
	mux.HandleFunc("GET /test", s.instrumented("/test", s.handleTest))
	return mux
}

// handleHealth reports liveness and the operating mode.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"mode":           string(s.svc.Mode()),
		"version":        buildinfo.Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleUpload decodes one of the two supported encodings into the
// canonical request and dispatches it.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxUploadBytes)

	req, err := decodeUpload(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.HandleUpload(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTest lists staged files and optionally previews one. Any reachable
// outcome answers 200; a preview problem is reported inline and never
// aborts the listing.
func (s *server) handleTest(w http.ResponseWriter, r *http.Request) {
	if s.svc.Mode() != config.ModeTest {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "staged file inspection is only available in TEST mode",
		})
		return
	}

	files, err := s.svc.ListStaged()
	if err != nil {
		logging.Error(component, "staging listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	resp := map[string]any{
		"mode":        string(config.ModeTest),
		"staging_dir": s.cfg.StagingDir,
		"files":       files,
	}
	if requested := r.URL.Query().Get("file"); requested != "" {
		lines, err := s.svc.PreviewStaged(requested)
		if err != nil {
			resp["preview_error"] = err.Error()
		} else {
			resp["preview_file"] = requested
			resp["preview"] = lines
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeUpload(r *http.Request) (relay.UploadRequest, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: unreadable content type: %v", relay.ErrUnsupportedEncoding, err)
	}
	switch mediaType {
	case "multipart/form-data":
		return decodeMultipart(r)
	case "application/json":
		return decodeJSONBody(r)
	default:
		return relay.UploadRequest{}, fmt.Errorf("%w: content type %q", relay.ErrUnsupportedEncoding, mediaType)
	}
}

func decodeMultipart(r *http.Request) (relay.UploadRequest, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: missing or unreadable file field: %v", relay.ErrMalformedPayload, err)
	}
	defer func() { _ = file.Close() }()

	payload, err := io.ReadAll(file)
	if err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: read file part: %v", relay.ErrMalformedPayload, err)
	}
	if len(payload) == 0 {
		return relay.UploadRequest{}, fmt.Errorf("%w: empty file part", relay.ErrMalformedPayload)
	}
	return relay.UploadRequest{
		Filename: header.Filename,
		Payload:  payload,
		Encoding: relay.EncodingForm,
	}, nil
}

func decodeJSONBody(r *http.Request) (relay.UploadRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: read body: %v", relay.ErrMalformedPayload, err)
	}
	if err := schema.ValidateUploadRequest(body); err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: %v", relay.ErrMalformedPayload, err)
	}

	var req struct {
		Filename string `json:"filename"`
		Data     string `json:"data"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: decode body: %v", relay.ErrMalformedPayload, err)
	}
	payload, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return relay.UploadRequest{}, fmt.Errorf("%w: invalid base64 data: %v", relay.ErrMalformedPayload, err)
	}
	if len(payload) == 0 {
		return relay.UploadRequest{}, fmt.Errorf("%w: empty payload", relay.ErrMalformedPayload)
	}
	return relay.UploadRequest{
		Filename: req.Filename,
		Payload:  payload,
		Encoding: relay.EncodingJSON,
	}, nil
}

// statusFor maps every taxonomy failure to exactly one status class.
func statusFor(err error) int {
	switch {
	case errors.Is(err, relay.ErrUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, relay.ErrMalformedPayload),
		errors.Is(err, filename.ErrInvalid),
		errors.Is(err, filename.ErrPathEscape):
		return http.StatusBadRequest
	default:
		// secret_unavailable, remote_directory_error, transfer_failure,
		// internal_error, and anything unanticipated.
		return http.StatusInternalServerError
	}
}

// publicMessage keeps classified failures verbatim and hides everything
// unanticipated behind a generic message.
func publicMessage(err error) string {
	classified := []error{
		relay.ErrUnsupportedEncoding,
		relay.ErrMalformedPayload,
		filename.ErrInvalid,
		filename.ErrPathEscape,
		secrets.ErrUnavailable,
		transfer.ErrRemoteDirectory,
		transfer.ErrTransfer,
	}
	for _, sentinel := range classified {
		if errors.Is(err, sentinel) {
			return err.Error()
		}
	}
	return "internal error"
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error(component, "request failed", "status", status, "error", err)
	} else {
		logging.Warn(component, "request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, relay.UploadResult{
		Status:  relay.StatusError,
		Message: publicMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrumented wraps handlers to record request metrics.
func (s *server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if s.httpMetrics != nil {
			s.httpMetrics.ObserveRequest(r.Method, route, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
		}
	}
}
