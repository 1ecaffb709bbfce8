package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertHistory creates or refreshes the history entry for a video,
// preserving user annotations (bookmark, rating, notes) and the access
// counter on refresh.
func (s *Store) UpsertHistory(h HistoryEntry) error {
	now := fmtTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO history (video_id, title, channel_name, thumbnail_url, duration_seconds,
			bookmarked, rating, notes, access_count, last_accessed_at, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, '', 0, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			title = excluded.title,
			channel_name = excluded.channel_name,
			thumbnail_url = excluded.thumbnail_url,
			duration_seconds = excluded.duration_seconds,
			last_accessed_at = excluded.last_accessed_at`,
		h.VideoID, h.Title, h.ChannelName, h.ThumbnailURL, h.DurationSeconds, now, now,
	)
	return err
}

// GetHistory returns the history entry for one video.
func (s *Store) GetHistory(videoID string) (HistoryEntry, error) {
	row := s.db.QueryRow(`
		SELECT video_id, title, channel_name, thumbnail_url, duration_seconds,
			bookmarked, rating, notes, access_count, last_accessed_at, created_at
		FROM history WHERE video_id = ?`, videoID)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, err
	}
	return h, nil
}

// ListHistory returns history entries, bookmarked first, then most
// recently accessed.
func (s *Store) ListHistory(limit, offset int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT video_id, title, channel_name, thumbnail_url, duration_seconds,
			bookmarked, rating, notes, access_count, last_accessed_at, created_at
		FROM history
		ORDER BY bookmarked DESC, last_accessed_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// TouchHistory increments the access counter and bumps the last-accessed
// timestamp.
func (s *Store) TouchHistory(videoID string) error {
	res, err := s.db.Exec(`
		UPDATE history SET access_count = access_count + 1, last_accessed_at = ?
		WHERE video_id = ?`, fmtTime(time.Now()), videoID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateHistoryAnnotations updates the user-owned fields. Nil pointers
// leave the corresponding field unchanged.
func (s *Store) UpdateHistoryAnnotations(videoID string, bookmarked *bool, rating *int, notes *string) error {
	h, err := s.GetHistory(videoID)
	if err != nil {
		return err
	}
	if bookmarked != nil {
		h.Bookmarked = *bookmarked
	}
	if rating != nil {
		if *rating < 1 || *rating > 5 {
			return fmt.Errorf("%w, got %d", ErrInvalidRating, *rating)
		}
		h.Rating = *rating
	}
	if notes != nil {
		h.Notes = *notes
	}

	b := 0
	if h.Bookmarked {
		b = 1
	}
	res, err := s.db.Exec(`
		UPDATE history SET bookmarked = ?, rating = ?, notes = ? WHERE video_id = ?`,
		b, h.Rating, h.Notes, videoID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanHistory(r rowScanner) (HistoryEntry, error) {
	var h HistoryEntry
	var bookmarked int
	var lastAccessed, createdAt string
	err := r.Scan(
		&h.VideoID, &h.Title, &h.ChannelName, &h.ThumbnailURL, &h.DurationSeconds,
		&bookmarked, &h.Rating, &h.Notes, &h.AccessCount, &lastAccessed, &createdAt,
	)
	if err != nil {
		return HistoryEntry{}, err
	}
	h.Bookmarked = bookmarked == 1
	if h.LastAccessedAt, err = parseTime(lastAccessed); err != nil {
		return HistoryEntry{}, fmt.Errorf("parsing last_accessed_at: %w", err)
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return HistoryEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return h, nil
}
