package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidSource marks URLs that do not look like a YouTube video link.
// Validation happens before any network access.
var ErrInvalidSource = errors.New("not a recognized YouTube video URL")

// ErrExtractionFailed means every usable source of video content was
// exhausted: no metadata tier produced real data and no captions exist.
var ErrExtractionFailed = errors.New("extraction failed")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Metadata holds the descriptive fields of a video.
type Metadata struct {
	Title           string
	Description     string
	DurationSeconds int
	ThumbnailURL    string
	ChannelName     string
	PublishedAt     string
	ViewCount       int64
	LikeCount       int64
}

// Result is the full extraction output for one video.
type Result struct {
	Metadata         Metadata
	Transcript       string
	TranscriptSource string // storage.TranscriptCaptions or storage.TranscriptSynthesized values
}

// Extractor fetches video metadata and transcripts with tiered fallbacks.
// It is stateless; all methods are safe for concurrent use.
type Extractor struct {
	httpClient   *http.Client
	watchBaseURL string
	oembedURL    string
	timedtextURL string
	langs        []string
	logger       *slog.Logger
}

// New creates an Extractor with production endpoints.
func New() *Extractor {
	return &Extractor{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		watchBaseURL: "https://www.youtube.com",
		oembedURL:    "https://www.youtube.com/oembed",
		timedtextURL: "https://www.youtube.com/api/timedtext",
		langs:        []string{"en", "en-US", "en-GB", "en-CA", "en-AU"},
		logger:       slog.Default(),
	}
}

// NewWithEndpoints creates an Extractor pointing at custom endpoints (for testing).
func NewWithEndpoints(client *http.Client, watchBaseURL, oembedURL, timedtextURL string) *Extractor {
	e := New()
	if client != nil {
		e.httpClient = client
	}
	e.watchBaseURL = strings.TrimRight(watchBaseURL, "/")
	e.oembedURL = strings.TrimRight(oembedURL, "/")
	e.timedtextURL = strings.TrimRight(timedtextURL, "/")
	return e
}

// Resolve validates a submitted URL and extracts the stable 11-character
// video ID. It performs no network access.
func Resolve(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = firstPathSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch segments[0] {
		case "watch":
			id = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			if len(segments) > 1 {
				id = segments[1]
			}
		}
	default:
		return "", fmt.Errorf("%w: host %q", ErrInvalidSource, u.Hostname())
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: could not find a video ID in %q", ErrInvalidSource, rawURL)
	}
	return id, nil
}

func firstPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// Fetch retrieves metadata and a transcript for a resolved video ID.
//
// Metadata runs through the tier chain and always yields something usable,
// degrading down to a deterministic placeholder. A missing transcript is
// replaced with text synthesized from the metadata. Only the combination
// of no real metadata and no captions is fatal: then there is nothing of
// the actual video to summarize.
func (e *Extractor) Fetch(ctx context.Context, videoID string) (Result, error) {
	meta, metaReal := e.fetchMetadata(ctx, videoID)

	transcript, err := e.fetchTranscript(ctx, videoID)
	if err == nil {
		return Result{Metadata: meta, Transcript: transcript, TranscriptSource: "captions"}, nil
	}
	e.logger.Warn("transcript unavailable, synthesizing from metadata",
		"video_id", videoID, "error", err)

	if !metaReal {
		return Result{}, fmt.Errorf("%w: no metadata source succeeded and no captions for %s", ErrExtractionFailed, videoID)
	}

	return Result{
		Metadata:         meta,
		Transcript:       synthesizeTranscript(meta),
		TranscriptSource: "synthesized",
	}, nil
}

// synthesizeTranscript builds a degraded transcript substitute from
// metadata so summarization always has some text to work with.
func synthesizeTranscript(m Metadata) string {
	var sb strings.Builder
	sb.WriteString(m.Title)
	if m.ChannelName != "" {
		sb.WriteString("\nChannel: ")
		sb.WriteString(m.ChannelName)
	}
	if m.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(m.Description)
	}
	return sb.String()
}
