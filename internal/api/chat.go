package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ttyv/internal/chat"
	"github.com/kalambet/ttyv/internal/llm"
	"github.com/kalambet/ttyv/internal/storage"
)

func handleStartChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sess, err := deps.Chat.StartSession(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		if errors.Is(err, chat.ErrJobNotReady) {
			httpError(w, http.StatusConflict, "job_not_ready", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start chat: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"session_id": sess.SessionID,
			"video_id":   sess.VideoID,
		})
	}
}

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := chi.URLParam(r, "session")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reply, err := deps.Chat.Answer(r.Context(), session, req.Question)
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		case errors.Is(err, chat.ErrSessionNotFound):
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		case errors.Is(err, chat.ErrSessionInactive):
			httpError(w, http.StatusConflict, "session_inactive", "%v", err)
			return
		case llm.KindOf(err) != llm.KindUnknown:
			upstreamError(w, err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to answer: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"session_id": session,
			"message_id": reply.ID,
			"answer":     reply.Content,
		})
	}
}

type messageView struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func handleChatHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := chi.URLParam(r, "session")

		sess, err := deps.Chat.Session(session)
		if errors.Is(err, chat.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
			return
		}

		messages, err := deps.Chat.Messages(session)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}

		views := make([]messageView, len(messages))
		for i, m := range messages {
			views[i] = messageView{
				ID:        m.ID,
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"session_id": sess.SessionID,
			"video_id":   sess.VideoID,
			"active":     sess.IsActive,
			"messages":   views,
		})
	}
}

func handleCloseChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := chi.URLParam(r, "session")

		err := deps.Chat.Close(session)
		if errors.Is(err, chat.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to close session: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "closed"})
	}
}

func handleDeleteChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := chi.URLParam(r, "session")

		err := deps.Chat.Delete(session)
		if errors.Is(err, chat.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete session: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}
