package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ttyv/internal/chat"
	"github.com/kalambet/ttyv/internal/extractor"
	"github.com/kalambet/ttyv/internal/history"
	"github.com/kalambet/ttyv/internal/llm"
	"github.com/kalambet/ttyv/internal/pipeline"
	"github.com/kalambet/ttyv/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Chat     *chat.Service
	History  *history.Recorder
	Token    string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/videos", handleSubmitVideo(deps))
		r.Get("/videos", handleListVideos(deps))
		r.Get("/videos/{id}", handleGetVideo(deps))
		r.Get("/videos/{id}/status", handleVideoStatus(deps))
		r.Get("/videos/{id}/transcript", handleVideoTranscript(deps))
		r.Delete("/videos/{id}", handleDeleteVideo(deps))

		r.Post("/videos/{id}/chat", handleStartChat(deps))
		r.Post("/chat/{session}", handleAsk(deps))
		r.Get("/chat/{session}", handleChatHistory(deps))
		r.Post("/chat/{session}/close", handleCloseChat(deps))
		r.Delete("/chat/{session}", handleDeleteChat(deps))

		r.Get("/history", handleListHistory(deps))
		r.Get("/history/{id}", handleGetHistory(deps))
		r.Patch("/history/{id}", handlePatchHistory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type submitRequest struct {
	URL string `json:"url"`
}

func handleSubmitVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		v, err := deps.Pipeline.Submit(req.URL)
		if errors.Is(err, extractor.ErrInvalidSource) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to submit video: %v", err)
			return
		}

		code := http.StatusAccepted
		if v.Status == storage.StatusCompleted {
			code = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"video_id": v.VideoID,
			"status":   v.Status,
		})
	}
}

func handleVideoStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		st, err := deps.Pipeline.Status(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get status: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}
}

// videoView is the JSON shape of a processed video. KeyPoints and Tags are
// stored as JSON text; the view decodes them back into arrays.
type videoView struct {
	VideoID          string   `json:"video_id"`
	SourceURL        string   `json:"source_url"`
	Status           string   `json:"status"`
	Title            string   `json:"title,omitempty"`
	ChannelName      string   `json:"channel_name,omitempty"`
	Description      string   `json:"description,omitempty"`
	DurationSeconds  int      `json:"duration_seconds,omitempty"`
	ThumbnailURL     string   `json:"thumbnail_url,omitempty"`
	PublishedAt      string   `json:"published_at,omitempty"`
	ViewCount        int64    `json:"view_count,omitempty"`
	LikeCount        int64    `json:"like_count,omitempty"`
	TranscriptSource string   `json:"transcript_source,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	KeyPoints        []string `json:"key_points"`
	Tags             []string `json:"tags"`
	Error            string   `json:"error,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

func newVideoView(v storage.Video) videoView {
	return videoView{
		VideoID:          v.VideoID,
		SourceURL:        v.SourceURL,
		Status:           v.Status,
		Title:            v.Title,
		ChannelName:      v.ChannelName,
		Description:      v.Description,
		DurationSeconds:  v.DurationSeconds,
		ThumbnailURL:     v.ThumbnailURL,
		PublishedAt:      v.PublishedAt,
		ViewCount:        v.ViewCount,
		LikeCount:        v.LikeCount,
		TranscriptSource: v.TranscriptSource,
		Summary:          v.Summary,
		KeyPoints:        decodeJSONList(v.KeyPoints),
		Tags:             decodeJSONList(v.Tags),
		Error:            v.Error,
		CreatedAt:        v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func handleGetVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		v, err := deps.Store.GetVideo(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get video: %v", err)
			return
		}

		// Results exist only at terminal states; until then clients poll
		// the status endpoint.
		if v.Status == storage.StatusPending || v.Status == storage.StatusProcessing {
			httpError(w, http.StatusConflict, "job_not_ready", "video %s is still %s", id, v.Status)
			return
		}

		if deps.History != nil && v.Status == storage.StatusCompleted {
			deps.History.Touch(id)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(newVideoView(v))
	}
}

func handleVideoTranscript(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		v, err := deps.Store.GetVideo(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get video: %v", err)
			return
		}
		if v.Transcript == "" {
			httpError(w, http.StatusConflict, "job_not_ready", "no transcript for video %s yet", id)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"video_id":   v.VideoID,
			"source":     v.TranscriptSource,
			"transcript": v.Transcript,
		})
	}
}

func handleListVideos(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		videos, err := deps.Store.ListVideos(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list videos: %v", err)
			return
		}

		views := make([]videoView, len(videos))
		for i, v := range videos {
			views[i] = newVideoView(v)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleDeleteVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteVideo(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete video: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func decodeJSONList(raw string) []string {
	items := []string{}
	if raw != "" {
		json.Unmarshal([]byte(raw), &items)
	}
	return items
}

// upstreamError maps completion-API failures onto HTTP responses so CLI
// and MCP clients can distinguish throttling from credential and quota
// problems.
func upstreamError(w http.ResponseWriter, err error) {
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "%v", err)
	case llm.KindUnauthorized:
		httpError(w, http.StatusBadGateway, "upstream_auth_error", "%v", err)
	case llm.KindInsufficientQuota:
		httpError(w, http.StatusPaymentRequired, "insufficient_quota", "%v", err)
	case llm.KindTimeout:
		httpError(w, http.StatusGatewayTimeout, "timeout_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
