package history

import (
	"errors"
	"log/slog"

	"github.com/kalambet/ttyv/internal/storage"
)

// Store abstracts the history table operations the recorder needs.
type Store interface {
	UpsertHistory(h storage.HistoryEntry) error
	TouchHistory(videoID string) error
}

// Recorder maintains the denormalized watch-history projection. It is a
// side effect of the pipeline and the read paths; its failures are logged,
// never propagated, since the projection can be rebuilt from the videos
// table at any time.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, logger: slog.Default()}
}

// RecordCompletion creates or refreshes the history entry for a video
// that just finished processing.
func (r *Recorder) RecordCompletion(v storage.Video) {
	entry := storage.HistoryEntry{
		VideoID:         v.VideoID,
		Title:           v.Title,
		ChannelName:     v.ChannelName,
		ThumbnailURL:    v.ThumbnailURL,
		DurationSeconds: v.DurationSeconds,
	}
	if err := r.store.UpsertHistory(entry); err != nil {
		r.logger.Warn("recording history entry failed", "video_id", v.VideoID, "error", err)
	}
}

// Touch bumps the access counter for a viewed video. Videos without a
// history entry (not yet completed) are ignored.
func (r *Recorder) Touch(videoID string) {
	err := r.store.TouchHistory(videoID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("touching history entry failed", "video_id", videoID, "error", err)
	}
}
