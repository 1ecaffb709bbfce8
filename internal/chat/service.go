package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/ttyv/internal/llm"
	"github.com/kalambet/ttyv/internal/storage"
)

var (
	// ErrJobNotReady means the video has not completed processing, so
	// there is no context to chat against yet.
	ErrJobNotReady = errors.New("video processing has not completed")

	// ErrSessionNotFound means the session ID does not exist.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrSessionInactive means the session was closed and no longer
	// accepts questions.
	ErrSessionInactive = errors.New("chat session is closed")

	// ErrEmptyQuestion means the question was blank after trimming.
	ErrEmptyQuestion = errors.New("question is empty")
)

const (
	defaultWindow        = 10
	defaultExcerptBudget = 6000
)

// Store is the slice of storage the chat service needs.
type Store interface {
	GetVideo(videoID string) (storage.Video, error)
	CreateSession(sess storage.ChatSession) error
	GetSession(sessionID string) (storage.ChatSession, error)
	CloseSession(sessionID string) error
	DeleteSession(sessionID string) error
	AppendMessage(m storage.ChatMessage) (int64, error)
	ListMessages(sessionID string) ([]storage.ChatMessage, error)
	ListRecentMessages(sessionID string, limit int) ([]storage.ChatMessage, error)
}

// Toucher bumps the watch-history access counter when a chat session
// starts. Optional.
type Toucher interface {
	Touch(videoID string)
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	// Window is the number of prior messages (user and assistant
	// combined) replayed into each prompt.
	Window int
	// ExcerptBudget is the character budget for the transcript excerpt
	// embedded in the system prompt.
	ExcerptBudget int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.ExcerptBudget <= 0 {
		c.ExcerptBudget = defaultExcerptBudget
	}
	return c
}

// Service runs grounded follow-up conversations about processed videos.
// Every prompt carries the video's stored context plus a bounded window
// of recent turns, so conversations stay cheap no matter how long they
// run.
type Service struct {
	store     Store
	completer llm.Completer
	toucher   Toucher
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a chat Service. toucher may be nil.
func NewService(store Store, completer llm.Completer, toucher Toucher, cfg Config) *Service {
	return &Service{
		store:     store,
		completer: completer,
		toucher:   toucher,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
	}
}

// StartSession opens a new session against a completed video.
func (s *Service) StartSession(videoID string) (storage.ChatSession, error) {
	v, err := s.store.GetVideo(videoID)
	if err != nil {
		return storage.ChatSession{}, err
	}
	if v.Status != storage.StatusCompleted {
		return storage.ChatSession{}, fmt.Errorf("%w: video %s is %s", ErrJobNotReady, videoID, v.Status)
	}

	sess := storage.ChatSession{
		SessionID: uuid.New().String(),
		VideoID:   videoID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSession(sess); err != nil {
		return storage.ChatSession{}, fmt.Errorf("creating session: %w", err)
	}
	if s.toucher != nil {
		s.toucher.Touch(videoID)
	}
	s.logger.Info("chat session started", "session_id", sess.SessionID, "video_id", videoID)
	return sess, nil
}

// Answer records the question, asks the model with the assembled prompt,
// and records the answer. The question is persisted before the model is
// called: if the call fails, the question survives in the session history
// and the caller can retry.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (storage.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return storage.ChatMessage{}, ErrEmptyQuestion
	}

	sess, err := s.getActiveSession(sessionID)
	if err != nil {
		return storage.ChatMessage{}, err
	}
	v, err := s.store.GetVideo(sess.VideoID)
	if err != nil {
		return storage.ChatMessage{}, fmt.Errorf("loading video %s: %w", sess.VideoID, err)
	}

	userID, err := s.store.AppendMessage(storage.ChatMessage{
		SessionID: sessionID,
		Role:      "user",
		Content:   question,
	})
	if err != nil {
		return storage.ChatMessage{}, fmt.Errorf("recording question: %w", err)
	}

	window, err := s.recentWindow(sessionID, userID)
	if err != nil {
		return storage.ChatMessage{}, err
	}

	messages := buildPrompt(v, window, question, s.cfg.ExcerptBudget)
	answer, err := s.completer.Complete(ctx, messages, llm.Options{Temperature: 0.3, MaxTokens: 1024})
	if err != nil {
		return storage.ChatMessage{}, fmt.Errorf("answering question: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return storage.ChatMessage{}, fmt.Errorf("chat completion returned empty text")
	}

	reply := storage.ChatMessage{
		SessionID: sessionID,
		Role:      "assistant",
		Content:   answer,
	}
	if reply.ID, err = s.store.AppendMessage(reply); err != nil {
		return storage.ChatMessage{}, fmt.Errorf("recording answer: %w", err)
	}
	reply.CreatedAt = time.Now().UTC()
	return reply, nil
}

// Messages returns the full message history of a session, oldest first.
func (s *Service) Messages(sessionID string) ([]storage.ChatMessage, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return nil, mapSessionErr(err)
	}
	return s.store.ListMessages(sessionID)
}

// Close deactivates a session. Its history stays readable.
func (s *Service) Close(sessionID string) error {
	return mapSessionErr(s.store.CloseSession(sessionID))
}

// Delete removes a session and all its messages.
func (s *Service) Delete(sessionID string) error {
	return mapSessionErr(s.store.DeleteSession(sessionID))
}

// Session returns one session by ID.
func (s *Service) Session(sessionID string) (storage.ChatSession, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return storage.ChatSession{}, mapSessionErr(err)
	}
	return sess, nil
}

func (s *Service) getActiveSession(sessionID string) (storage.ChatSession, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return storage.ChatSession{}, mapSessionErr(err)
	}
	if !sess.IsActive {
		return storage.ChatSession{}, fmt.Errorf("%w: %s", ErrSessionInactive, sessionID)
	}
	return sess, nil
}

// recentWindow returns the newest cfg.Window messages preceding the
// message with ID before, in chronological order.
func (s *Service) recentWindow(sessionID string, before int64) ([]storage.ChatMessage, error) {
	// One extra slot because the just-recorded question is the newest row.
	recent, err := s.store.ListRecentMessages(sessionID, s.cfg.Window+1)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}

	window := make([]storage.ChatMessage, 0, s.cfg.Window)
	for _, m := range recent {
		if m.ID >= before {
			continue
		}
		window = append(window, m)
		if len(window) == s.cfg.Window {
			break
		}
	}

	// ListRecentMessages is newest-first; prompts need oldest-first.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

func mapSessionErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}
