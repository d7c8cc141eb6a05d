package downloader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"ytfetch/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the downloader HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional
// Metrics. Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts all downloader endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Health)
	r.Post("/api/youtube/info", h.Info)
	r.Post("/api/youtube/download", h.Download)
	r.Get("/api/quick-download", h.QuickDownload)
	r.Get("/download/{filename}", h.ServeFile)
}

// Health handles GET /.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("YouTube Downloader API Running"))
}

type urlRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

// Info handles POST /api/youtube/info. Body: { "url": "..." }.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	info, err := h.svc.Info(r.Context(), req.URL)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Download handles POST /api/youtube/download.
// Body: { "url": "...", "quality": "720p", "format": "mp4" }.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	res, err := h.svc.Download(r.Context(), req.URL, req.Quality, req.Format)
	if err != nil {
		h.log.Error("download failed", slog.String("url", req.URL), slog.String("error", err.Error()))
		h.writeServiceError(w, err)
		return
	}

	h.log.Info("download complete",
		slog.String("filename", res.FileName),
		slog.Int64("size", res.Size))
	if h.metrics != nil {
		h.metrics.IncDownloads()
		if strings.EqualFold(req.Format, "mp3") {
			h.metrics.IncConversions()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"downloadUrl": "/download/" + res.FileName,
		"filename":    res.FileName,
		"title":       res.Title,
		"size":        res.Size,
	})
}

// ServeFile handles GET /download/{filename}: one-shot retrieval of a
// completed file, followed by deletion after the grace delay.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, info, err := h.svc.OpenFile(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found or expired", "")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))

	if _, err := io.Copy(w, f); err != nil {
		h.log.Debug("serve interrupted", slog.String("filename", name), slog.String("error", err.Error()))
	}

	h.svc.ScheduleRemoval(name)
	if h.metrics != nil {
		h.metrics.IncFilesServed()
	}
}

// QuickDownload handles GET /api/quick-download?url=... by streaming the media
// straight through without persisting it.
func (h *Handler) QuickDownload(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required", "")
		return
	}

	stream, filename, size, err := h.svc.QuickDownload(r.Context(), url)
	if err != nil {
		h.log.Error("quick download failed", slog.String("url", url), slog.String("error", err.Error()))
		h.writeServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if _, err := io.Copy(w, stream); err != nil {
		h.log.Debug("quick download interrupted", slog.String("url", url), slog.String("error", err.Error()))
	}
}

// writeServiceError maps domain errors onto HTTP statuses and JSON bodies.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "Invalid YouTube URL", "")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found or expired", "")
	case errors.Is(err, ErrFetchFailed):
		writeError(w, http.StatusInternalServerError, "Failed to fetch video info", causeOf(err, ErrFetchFailed))
	case errors.Is(err, ErrConversionFailed):
		writeError(w, http.StatusInternalServerError, "Conversion failed", causeOf(err, ErrConversionFailed))
	case errors.Is(err, ErrDownloadFailed):
		writeError(w, http.StatusInternalServerError, "Download failed", causeOf(err, ErrDownloadFailed))
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

// causeOf strips the sentinel prefix so the details field carries only the
// underlying message.
func causeOf(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
