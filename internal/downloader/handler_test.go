package downloader

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, ext *fakeExtractor) (*Handler, *Storage) {
	t.Helper()
	svc, storage := newTestService(t, ext)
	return NewHandler(svc, testLogger(), nil), storage
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func postJSON(r http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "YouTube Downloader API Running" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestHandler_Info(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	rec := postJSON(r, "/api/youtube/info", map[string]any{"url": validURL})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Title    string           `json:"title"`
		Author   string           `json:"author"`
		VideoID  string           `json:"videoId"`
		Duration int64            `json:"duration"`
		Formats  []EncodingOption `json:"formats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Title != "Test Video: Part 1" || resp.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("unexpected info: %+v", resp)
	}
	if len(resp.Formats) != 2 {
		t.Errorf("expected 2 playable formats, got %d", len(resp.Formats))
	}
}

func TestHandler_Info_invalid_url(t *testing.T) {
	ext := &fakeExtractor{video: testVideo()}
	h, _ := newTestHandler(t, ext)
	r := newTestRouter(h)

	rec := postJSON(r, "/api/youtube/info", map[string]any{"url": "https://example.com/x"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid YouTube URL") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if ext.getVideoCalls != 0 {
		t.Error("invalid URL must be rejected before any network call")
	}
}

func TestHandler_Info_missing_body(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/youtube/info", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Info_fetch_failure_has_details(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExtractor{videoErr: errors.New("video unavailable")})
	r := newTestRouter(h)

	rec := postJSON(r, "/api/youtube/info", map[string]any{"url": validURL})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected non-empty error field")
	}
	if body["details"] != "video unavailable" {
		t.Errorf("expected underlying cause in details, got %q", body["details"])
	}
}

func TestHandler_Download(t *testing.T) {
	h, storage := newTestHandler(t, &fakeExtractor{video: testVideo(), streamData: "bytes"})
	r := newTestRouter(h)

	rec := postJSON(r, "/api/youtube/download", map[string]any{"url": validURL, "quality": "720p"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success     bool   `json:"success"`
		DownloadURL string `json:"downloadUrl"`
		Filename    string `json:"filename"`
		Title       string `json:"title"`
		Size        int64  `json:"size"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Filename == "" || resp.Title != "Test Video: Part 1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.DownloadURL != "/download/"+resp.Filename {
		t.Errorf("downloadUrl %q does not match filename %q", resp.DownloadURL, resp.Filename)
	}
	if _, _, err := storage.Open(resp.Filename); err != nil {
		t.Errorf("downloaded file not in storage: %v", err)
	}
}

func TestHandler_ServeFile_then_delayed_delete(t *testing.T) {
	h, storage := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	writeStoredFile(t, storage, "clip-1.mp4", "file body")

	req := httptest.NewRequest(http.MethodGet, "/download/clip-1.mp4", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "clip-1.mp4") {
		t.Errorf("unexpected Content-Disposition: %q", cd)
	}
	if rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("unexpected Content-Type: %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "file body" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}

	// The grace delay in tests is 10ms; poll until the file disappears.
	deadline := time.Now().Add(time.Second)
	for {
		if _, _, err := storage.Open("clip-1.mp4"); errors.Is(err, ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("served file still present after grace delay")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_ServeFile_not_found(t *testing.T) {
	h, storage := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	writeStoredFile(t, storage, "other.mp4", "x")

	req := httptest.NewRequest(http.MethodGet, "/download/missing.mp4", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"File not found or expired"}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if storage.Count() != 1 {
		t.Error("missing-file request must not mutate storage")
	}
}

func TestHandler_QuickDownload(t *testing.T) {
	h, storage := newTestHandler(t, &fakeExtractor{video: testVideo(), streamData: "direct"})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/quick-download?url="+validURL, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "direct" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("unexpected Content-Type: %q", rec.Header().Get("Content-Type"))
	}
	if storage.Count() != 0 {
		t.Error("quick download must not create stored files")
	}
}

func TestHandler_QuickDownload_missing_url(t *testing.T) {
	h, _ := newTestHandler(t, &fakeExtractor{video: testVideo()})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/quick-download", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
