package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/minutagen/internal/minutes"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	multipartMemoryBytes = 32 << 20
	maxJSONBodyBytes     = 64 << 10

	messageMissingFile       = "No se encontró el archivo de audio."
	messageFileTooLarge      = "El archivo de audio supera el tamaño máximo permitido."
	messageInvalidYouTubeURL = "URL de YouTube no válida."
	messageEmptyFile         = "No se pudo extraer texto del audio."
	messageEmptyYouTube      = "No se pudo extraer texto del audio de YouTube."
	messageServerErrorPrefix = "Error en el servidor: "
)

// BatchService produces minutes from whole recordings.
type BatchService interface {
	FromUpload(ctx context.Context, filename string, r io.Reader) (minutes.Outcome, error)
	FromYouTube(ctx context.Context, videoURL string) (minutes.Outcome, error)
}

type RouterConfig struct {
	AllowedOrigin  string
	MaxUploadBytes int64
}

type errorResponse struct {
	Error string `json:"error"`
}

type youtubeRequest struct {
	URL string `json:"url"`
}

type handler struct {
	cfg     RouterConfig
	service BatchService
}

// NewRouter mounts the batch endpoints, the realtime endpoint and the
// operational endpoints.
func NewRouter(cfg RouterConfig, service BatchService, realtime http.Handler, metrics http.Handler) http.Handler {
	h := &handler{cfg: cfg, service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg.AllowedOrigin)))

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", metrics)
	r.Handle("/ws", realtime)
	r.Route("/api", func(r chi.Router) {
		r.Post("/transcribe-file", h.handleTranscribeFile)
		r.Post("/transcribe-youtube", h.handleTranscribeYouTube)
	})
	return r
}

func corsOptions(allowedOrigin string) cors.Options {
	origins := []string{"*"}
	if o := strings.TrimRight(strings.TrimSpace(allowedOrigin), "/"); o != "" && o != "*" {
		origins = []string{o}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(started).String(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr)
		}()
		next.ServeHTTP(ww, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleTranscribeFile(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > h.cfg.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, messageFileTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, messageFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, messageMissingFile)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("audioFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, messageMissingFile)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	out, err := h.service.FromUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, err, messageMissingFile, messageEmptyFile)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleTranscribeYouTube(w http.ResponseWriter, r *http.Request) {
	var req youtubeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, messageInvalidYouTubeURL)
		return
	}
	out, err := h.service.FromYouTube(r.Context(), req.URL)
	if err != nil {
		h.writeServiceError(w, r, err, messageInvalidYouTubeURL, messageEmptyYouTube)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, invalidMessage, emptyMessage string) {
	switch {
	case errors.Is(err, minutes.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, invalidMessage)
	case errors.Is(err, minutes.ErrEmptyTranscript):
		writeError(w, http.StatusBadRequest, emptyMessage)
	default:
		slog.Error("batch request failed", "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, messageServerErrorPrefix+err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
