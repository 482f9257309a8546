package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relayops/sftprelay/core/infra/config"
	"github.com/relayops/sftprelay/core/infra/secrets"
	"github.com/relayops/sftprelay/core/relay"
	"github.com/relayops/sftprelay/core/relay/staging"
)

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	limits, err := config.ParseLimits(nil)
	if err != nil {
		t.Fatalf("default limits: %v", err)
	}
	return &config.Config{
		Mode:        mode,
		HTTPAddr:    ":0",
		MetricsAddr: ":0",
		StagingDir:  t.TempDir(),
		SecretNames: config.SecretNames{
			Host:      "SFTP_HOST",
			Username:  "SFTP_USERNAME",
			Password:  "SFTP_PASSWORD",
			RemoteDir: "SFTP_DIRECTORY",
		},
		Limits: limits,
	}
}

func newTestServer(t *testing.T, mode config.Mode, resolver secrets.Resolver, uploader relay.Uploader) *server {
	t.Helper()
	cfg := testConfig(t, mode)
	store := staging.NewStore(cfg.StagingDir, cfg.Limits.PreviewLines)
	svc := relay.NewService(cfg, store, resolver, uploader, nil)
	return &server{cfg: cfg, svc: svc, started: time.Now()}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func doRequest(t *testing.T, s *server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response (%d): %v", rec.Code, err)
	}
	return rec, body
}

func TestHealthReportsMode(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)

	rec, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body["status"] != "healthy" || body["mode"] != "TEST" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestUploadMultipart(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)
	buf, contentType := multipartBody(t, "file", "report.csv", []byte("h1,h2\nv1,v2\n"))

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := doRequest(t, s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%v)", rec.Code, body)
	}
	if body["status"] != "success" || body["message"] != "report.csv uploaded" {
		t.Fatalf("unexpected body: %v", body)
	}
	details := body["details"].(map[string]any)
	if details["size_bytes"].(float64) != 12 || details["line_count"].(float64) != 2 {
		t.Fatalf("unexpected details: %v", details)
	}
	if details["sftp_connection"] != "simulated" {
		t.Fatalf("expected simulated marker: %v", details)
	}
}

func TestUploadJSONMatchesMultipart(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)
	content := []byte("h1,h2\nv1,v2\n")

	buf, contentType := multipartBody(t, "file", "report.csv", content)
	formReq := httptest.NewRequest(http.MethodPost, "/upload", buf)
	formReq.Header.Set("Content-Type", contentType)
	_, formBody := doRequest(t, s, formReq)

	jsonPayload := fmt.Sprintf(`{"filename":"report.csv","data":%q}`, base64.StdEncoding.EncodeToString(content))
	jsonReq := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(jsonPayload))
	jsonReq.Header.Set("Content-Type", "application/json")
	rec, jsonBody := doRequest(t, s, jsonReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("json upload failed: %d (%v)", rec.Code, jsonBody)
	}
	formDetails := formBody["details"].(map[string]any)
	jsonDetails := jsonBody["details"].(map[string]any)
	if formBody["status"] != jsonBody["status"] ||
		formDetails["size_bytes"] != jsonDetails["size_bytes"] ||
		formDetails["line_count"] != jsonDetails["line_count"] {
		t.Fatalf("encoding changed outcome: %v vs %v", formBody, jsonBody)
	}
}

func TestUploadUnsupportedContentType(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("a,b\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec, body := doRequest(t, s, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if body["status"] != "error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestUploadClientErrors(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)

	cases := []struct {
		name        string
		contentType string
		body        string
	}{
		{"missing fields", "application/json", `{"filename":"report.csv"}`},
		{"invalid base64", "application/json", `{"filename":"report.csv","data":"!!not-base64!!"}`},
		{"empty decoded payload", "application/json", `{"filename":"report.csv","data":"="}`},
		{"bad json", "application/json", `{"filename":`},
		{"bad filename", "application/json", `{"filename":"report.exe","data":"aGk="}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", tc.contentType)
		rec, body := doRequest(t, s, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%v)", tc.name, rec.Code, body)
		}
		if body["status"] != "error" || body["message"] == "" {
			t.Fatalf("%s: unexpected body: %v", tc.name, body)
		}
	}
}

func TestUploadEmptyFilePart(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)
	buf, contentType := multipartBody(t, "file", "report.csv", nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := doRequest(t, s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty file, got %d (%v)", rec.Code, body)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)
	buf, contentType := multipartBody(t, "attachment", "report.csv", []byte("a\n"))

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec, _ := doRequest(t, s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file field, got %d", rec.Code)
	}
}

func TestUploadSecretFailureIs500(t *testing.T) {
	s := newTestServer(t, config.ModeProduction, secrets.Static{}, nil)

	jsonPayload := `{"filename":"report.csv","data":"aGk="}`
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	rec, body := doRequest(t, s, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%v)", rec.Code, body)
	}
	if !strings.Contains(body["message"].(string), "SFTP_HOST") {
		t.Fatalf("message should name the failing secret: %v", body)
	}
}

func TestTestEndpointListsAndPreviews(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)

	var lines []string
	for i := 1; i <= 25; i++ {
		lines = append(lines, fmt.Sprintf("row-%d", i))
	}
	content := []byte(strings.Join(lines, "\n") + "\n")
	buf, contentType := multipartBody(t, "file", "big.csv", content)
	uploadReq := httptest.NewRequest(http.MethodPost, "/upload", buf)
	uploadReq.Header.Set("Content-Type", contentType)
	if rec, body := doRequest(t, s, uploadReq); rec.Code != http.StatusOK {
		t.Fatalf("seed upload failed: %d (%v)", rec.Code, body)
	}

	rec, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/test?file=big.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	files := body["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("expected one staged file: %v", body)
	}
	preview := body["preview"].([]any)
	if len(preview) != 21 {
		t.Fatalf("expected 20 lines + sentinel, got %d", len(preview))
	}
	if preview[20] != "... [File truncated - Showing first 20 lines] ..." {
		t.Fatalf("unexpected sentinel: %v", preview[20])
	}
}

func TestTestEndpointPreviewErrorKeepsListing(t *testing.T) {
	s := newTestServer(t, config.ModeTest, nil, nil)

	buf, contentType := multipartBody(t, "file", "ok.csv", []byte("a\n"))
	uploadReq := httptest.NewRequest(http.MethodPost, "/upload", buf)
	uploadReq.Header.Set("Content-Type", contentType)
	if rec, _ := doRequest(t, s, uploadReq); rec.Code != http.StatusOK {
		t.Fatalf("seed upload failed: %d", rec.Code)
	}

	for _, requested := range []string{"../ok.csv", "absent.csv", "bad name.csv"} {
		rec, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/test?file="+strings.ReplaceAll(requested, " ", "%20"), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: preview failure must not fail listing: %d", requested, rec.Code)
		}
		if body["preview_error"] == nil {
			t.Fatalf("%s: expected preview_error, got %v", requested, body)
		}
		if len(body["files"].([]any)) != 1 {
			t.Fatalf("%s: listing dropped: %v", requested, body)
		}
	}
}

func TestTestEndpointRejectedOutsideTestMode(t *testing.T) {
	s := newTestServer(t, config.ModeProduction, secrets.Static{}, nil)

	rec, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 outside TEST mode, got %d (%v)", rec.Code, body)
	}
}

func TestStatusForIsTotal(t *testing.T) {
	// Every taxonomy failure maps to exactly one status class.
	cases := map[error]int{
		relay.ErrUnsupportedEncoding: http.StatusUnsupportedMediaType,
		relay.ErrMalformedPayload:    http.StatusBadRequest,
		relay.ErrInternal:            http.StatusInternalServerError,
		secrets.ErrUnavailable:       http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := fmt.Errorf("%w: stack trace and file paths", relay.ErrInternal)
	if got := publicMessage(err); got != "internal error" {
		t.Fatalf("internal detail leaked: %q", got)
	}
	classified := fmt.Errorf("%w: empty file part", relay.ErrMalformedPayload)
	if got := publicMessage(classified); !strings.Contains(got, "empty file part") {
		t.Fatalf("classified message lost: %q", got)
	}
}
