package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const videoColumns = `video_id, source_url, status, title, description, duration_seconds,
	thumbnail_url, channel_name, published_at, view_count, like_count,
	transcript, transcript_source, summary, key_points, tags, error, created_at, updated_at`

// CreateVideoIfAbsent inserts a new pending video record unless one already
// exists for the same video ID. It returns the stored record and whether
// this call created it. The insert relies on the primary-key constraint so
// that two near-simultaneous submissions cannot both create the record.
func (s *Store) CreateVideoIfAbsent(videoID, sourceURL string) (Video, bool, error) {
	now := fmtTime(time.Now())
	res, err := s.db.Exec(`
		INSERT INTO videos (video_id, source_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO NOTHING`,
		videoID, sourceURL, StatusPending, now, now,
	)
	if err != nil {
		return Video{}, false, fmt.Errorf("inserting video %s: %w", videoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Video{}, false, err
	}

	v, err := s.GetVideo(videoID)
	if err != nil {
		return Video{}, false, err
	}
	return v, n == 1, nil
}

// GetVideo returns the record for one video ID.
func (s *Store) GetVideo(videoID string) (Video, error) {
	row := s.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, videoID)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return Video{}, ErrNotFound
	}
	if err != nil {
		return Video{}, err
	}
	return v, nil
}

// ListVideos returns videos ordered by creation time, newest first.
func (s *Store) ListVideos(limit, offset int) ([]Video, error) {
	rows, err := s.db.Query(`
		SELECT `+videoColumns+` FROM videos
		ORDER BY created_at DESC, video_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// ClaimVideo transitions a video from pending or failed to processing.
// It returns false when the video is already processing or completed —
// exactly one of any set of concurrent claimants observes true. A claim
// also clears the previous error so a retried job starts clean.
func (s *Store) ClaimVideo(videoID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, error = '', updated_at = ?
		WHERE video_id = ? AND status IN (?, ?)`,
		StatusProcessing, fmtTime(time.Now()), videoID, StatusPending, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("claiming video %s: %w", videoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetVideoExtraction stores metadata and transcript after extraction
// succeeds, while the video is still processing.
func (s *Store) SetVideoExtraction(videoID string, v Video) error {
	res, err := s.db.Exec(`
		UPDATE videos SET title = ?, description = ?, duration_seconds = ?,
			thumbnail_url = ?, channel_name = ?, published_at = ?,
			view_count = ?, like_count = ?, transcript = ?, transcript_source = ?,
			updated_at = ?
		WHERE video_id = ?`,
		v.Title, v.Description, v.DurationSeconds, v.ThumbnailURL, v.ChannelName,
		v.PublishedAt, v.ViewCount, v.LikeCount, v.Transcript, v.TranscriptSource,
		fmtTime(time.Now()), videoID,
	)
	if err != nil {
		return fmt.Errorf("storing extraction for %s: %w", videoID, err)
	}
	return requireRow(res)
}

// CompleteVideo writes the summarization results and moves the video to
// completed. keyPoints and tags are JSON arrays encoded as text.
func (s *Store) CompleteVideo(videoID, summary, keyPoints, tags string) error {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, summary = ?, key_points = ?, tags = ?, error = '', updated_at = ?
		WHERE video_id = ?`,
		StatusCompleted, summary, keyPoints, tags, fmtTime(time.Now()), videoID,
	)
	if err != nil {
		return fmt.Errorf("completing video %s: %w", videoID, err)
	}
	return requireRow(res)
}

// FailVideo moves the video to failed, recording the error message for the
// polling client. The record is kept so the failure is observable and the
// video can be resubmitted.
func (s *Store) FailVideo(videoID, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE videos SET status = ?, error = ?, updated_at = ? WHERE video_id = ?`,
		StatusFailed, errMsg, fmtTime(time.Now()), videoID,
	)
	if err != nil {
		return fmt.Errorf("failing video %s: %w", videoID, err)
	}
	return requireRow(res)
}

// DeleteVideo removes a video along with its chat sessions, messages, and
// history entry.
func (s *Store) DeleteVideo(videoID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM chat_messages WHERE session_id IN
			(SELECT session_id FROM chat_sessions WHERE video_id = ?)`, videoID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE video_id = ?`, videoID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM history WHERE video_id = ?`, videoID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM videos WHERE video_id = ?`, videoID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(r rowScanner) (Video, error) {
	var v Video
	var createdAt, updatedAt string
	err := r.Scan(
		&v.VideoID, &v.SourceURL, &v.Status, &v.Title, &v.Description, &v.DurationSeconds,
		&v.ThumbnailURL, &v.ChannelName, &v.PublishedAt, &v.ViewCount, &v.LikeCount,
		&v.Transcript, &v.TranscriptSource, &v.Summary, &v.KeyPoints, &v.Tags, &v.Error,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return Video{}, err
	}
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return Video{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Video{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return v, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
