package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ttyv/internal/storage"
)

type historyView struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	ChannelName     string `json:"channel_name,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Bookmarked      bool   `json:"bookmarked"`
	Rating          int    `json:"rating,omitempty"`
	Notes           string `json:"notes,omitempty"`
	AccessCount     int    `json:"access_count"`
	LastAccessedAt  string `json:"last_accessed_at"`
	CreatedAt       string `json:"created_at"`
}

func newHistoryView(h storage.HistoryEntry) historyView {
	return historyView{
		VideoID:         h.VideoID,
		Title:           h.Title,
		ChannelName:     h.ChannelName,
		ThumbnailURL:    h.ThumbnailURL,
		DurationSeconds: h.DurationSeconds,
		Bookmarked:      h.Bookmarked,
		Rating:          h.Rating,
		Notes:           h.Notes,
		AccessCount:     h.AccessCount,
		LastAccessedAt:  h.LastAccessedAt.UTC().Format(time.RFC3339),
		CreatedAt:       h.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func handleListHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		entries, err := deps.Store.ListHistory(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}

		views := make([]historyView, len(entries))
		for i, h := range entries {
			views[i] = newHistoryView(h)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleGetHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		h, err := deps.Store.GetHistory(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get history entry: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(newHistoryView(h))
	}
}

type historyPatch struct {
	Bookmarked *bool   `json:"bookmarked"`
	Rating     *int    `json:"rating"`
	Notes      *string `json:"notes"`
}

func handlePatchHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var patch historyPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if patch.Bookmarked == nil && patch.Rating == nil && patch.Notes == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "nothing to update")
			return
		}

		err := deps.Store.UpdateHistoryAnnotations(id, patch.Bookmarked, patch.Rating, patch.Notes)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}
		if errors.Is(err, storage.ErrInvalidRating) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update history entry: %v", err)
			return
		}

		h, err := deps.Store.GetHistory(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to reload history entry: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(newHistoryView(h))
	}
}
