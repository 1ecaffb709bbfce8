package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRating is returned for history ratings outside 1-5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Video processing states. Pending and Processing are transient; Completed
// is terminal; Failed is terminal for a run but resubmission re-enters the
// pipeline.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Transcript provenance markers.
const (
	TranscriptCaptions    = "captions"
	TranscriptSynthesized = "synthesized"
)

// Video is one processing record per YouTube video ID (the unique key).
type Video struct {
	VideoID          string
	SourceURL        string
	Status           string
	Title            string
	Description      string
	DurationSeconds  int
	ThumbnailURL     string
	ChannelName      string
	PublishedAt      string
	ViewCount        int64
	LikeCount        int64
	Transcript       string
	TranscriptSource string
	Summary          string
	KeyPoints        string // JSON array stored as text
	Tags             string // JSON array stored as text
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// ChatSession ties a conversation to one completed video.
type ChatSession struct {
	SessionID string
	VideoID   string
	IsActive  bool
	CreatedAt time.Time
}

// ChatMessage is one turn in a session. Messages are append-only and
// ordered by their rowid.
type ChatMessage struct {
	ID        int64
	SessionID string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// HistoryEntry is the denormalized, user-facing projection of a completed
// video plus user annotations. Safe to rebuild from the videos table.
type HistoryEntry struct {
	VideoID         string
	Title           string
	ChannelName     string
	ThumbnailURL    string
	DurationSeconds int
	Bookmarked      bool
	Rating          int // 0 = unrated, otherwise 1-5
	Notes           string
	AccessCount     int
	LastAccessedAt  time.Time
	CreatedAt       time.Time
}
