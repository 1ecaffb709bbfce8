package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ttyv/internal/extractor"
	"github.com/kalambet/ttyv/internal/storage"
)

// JobTypeProcess is the queue job type for one end-to-end video run.
const JobTypeProcess = "video_process"

// Store is the slice of storage the pipeline depends on.
type Store interface {
	CreateVideoIfAbsent(videoID, sourceURL string) (storage.Video, bool, error)
	GetVideo(videoID string) (storage.Video, error)
	ClaimVideo(videoID string) (bool, error)
	SetVideoExtraction(videoID string, v storage.Video) error
	CompleteVideo(videoID, summary, keyPoints, tags string) error
	FailVideo(videoID, errMsg string) error
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Fetcher extracts metadata and a transcript for a resolved video ID.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (extractor.Result, error)
}

// Summarizer produces the AI-generated fields from a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title, channel string, durationSeconds int) (string, error)
	KeyPoints(ctx context.Context, transcript, title string) ([]string, error)
	Tags(ctx context.Context, transcript, title, channel string) []string
}

// CompletionRecorder receives the side effect of a successful run.
type CompletionRecorder interface {
	RecordCompletion(v storage.Video)
}

// Pipeline orchestrates video processing: dedup check, state transition,
// enqueue, and the background run executed by the Worker. Submissions
// return immediately; clients poll Status until a terminal state.
type Pipeline struct {
	store      Store
	fetcher    Fetcher
	summarizer Summarizer
	recorder   CompletionRecorder
	logger     *slog.Logger
}

// New creates a Pipeline with the given dependencies. recorder may be nil
// to disable the history side effect.
func New(store Store, fetcher Fetcher, summarizer Summarizer, recorder CompletionRecorder) *Pipeline {
	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		summarizer: summarizer,
		recorder:   recorder,
		logger:     slog.Default(),
	}
}

// Submit resolves the URL and either returns the already-completed record
// (cache hit) or ensures exactly one processing run is queued for the
// video. At most one run per video ID can be in flight: the claim is a
// conditional state transition backed by the unique video row, so two
// near-simultaneous submissions of the same URL cannot both enqueue work.
func (p *Pipeline) Submit(sourceURL string) (storage.Video, error) {
	videoID, err := extractor.Resolve(sourceURL)
	if err != nil {
		return storage.Video{}, err
	}

	v, created, err := p.store.CreateVideoIfAbsent(videoID, sourceURL)
	if err != nil {
		return storage.Video{}, fmt.Errorf("creating video record: %w", err)
	}

	if v.Status == storage.StatusCompleted {
		p.logger.Debug("submission deduplicated", "video_id", videoID)
		return v, nil
	}

	claimed, err := p.store.ClaimVideo(videoID)
	if err != nil {
		return storage.Video{}, fmt.Errorf("claiming video: %w", err)
	}
	if !claimed {
		// Lost the race or a run is already in flight; report current state.
		return p.store.GetVideo(videoID)
	}

	payload, err := json.Marshal(map[string]string{"video_id": videoID})
	if err != nil {
		return storage.Video{}, fmt.Errorf("marshalling job payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeProcess,
		PayloadJSON: string(payload),
		MaxAttempts: 1,
	}
	if err := p.store.EnqueueJob(job); err != nil {
		if failErr := p.store.FailVideo(videoID, "could not queue processing: "+err.Error()); failErr != nil {
			p.logger.Error("failed to record enqueue failure", "video_id", videoID, "error", failErr)
		}
		return storage.Video{}, fmt.Errorf("enqueueing job: %w", err)
	}

	p.logger.Info("video queued", "video_id", videoID, "new_record", created)
	return p.store.GetVideo(videoID)
}

// Status is the coarse polling view of a job.
type Status struct {
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Status returns the polling view for one video. Progress is deliberately
// coarse: 0 while pending, a fixed midpoint while processing, 100 at any
// terminal state.
func (p *Pipeline) Status(videoID string) (Status, error) {
	v, err := p.store.GetVideo(videoID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		VideoID:  v.VideoID,
		Status:   v.Status,
		Progress: progressFor(v.Status),
		Error:    v.Error,
	}, nil
}

func progressFor(status string) int {
	switch status {
	case storage.StatusPending:
		return 0
	case storage.StatusProcessing:
		return 50
	default:
		return 100
	}
}

// process executes one full run for a claimed video: extraction, then the
// three summarization calls, then the terminal state write. Any fatal
// error moves the video to failed with the message preserved for polling
// clients; the record is never deleted, so resubmission stays possible.
func (p *Pipeline) process(ctx context.Context, videoID string) error {
	v, err := p.store.GetVideo(videoID)
	if err != nil {
		return fmt.Errorf("loading video %s: %w", videoID, err)
	}

	p.logger.Info("processing stage", "video_id", videoID, "stage", "extract")
	res, err := p.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return p.fail(videoID, fmt.Errorf("extracting content: %w", err))
	}

	v.Title = res.Metadata.Title
	v.Description = res.Metadata.Description
	v.DurationSeconds = res.Metadata.DurationSeconds
	v.ThumbnailURL = res.Metadata.ThumbnailURL
	v.ChannelName = res.Metadata.ChannelName
	v.PublishedAt = res.Metadata.PublishedAt
	v.ViewCount = res.Metadata.ViewCount
	v.LikeCount = res.Metadata.LikeCount
	v.Transcript = res.Transcript
	v.TranscriptSource = res.TranscriptSource
	if err := p.store.SetVideoExtraction(videoID, v); err != nil {
		return p.fail(videoID, fmt.Errorf("storing extraction: %w", err))
	}

	p.logger.Info("processing stage", "video_id", videoID, "stage", "summarize",
		"transcript_source", res.TranscriptSource)

	var summary string
	var points []string
	tags := []string{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = p.summarizer.Summarize(gctx, v.Transcript, v.Title, v.ChannelName, v.DurationSeconds)
		return err
	})
	g.Go(func() error {
		var err error
		points, err = p.summarizer.KeyPoints(gctx, v.Transcript, v.Title)
		return err
	})
	g.Go(func() error {
		// Tag failures are absorbed inside the summarizer; they never
		// fail the job.
		tags = p.summarizer.Tags(gctx, v.Transcript, v.Title, v.ChannelName)
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.fail(videoID, err)
	}

	pointsJSON, err := marshalList(points)
	if err != nil {
		return p.fail(videoID, fmt.Errorf("encoding key points: %w", err))
	}
	tagsJSON, err := marshalList(tags)
	if err != nil {
		return p.fail(videoID, fmt.Errorf("encoding tags: %w", err))
	}

	if err := p.store.CompleteVideo(videoID, summary, pointsJSON, tagsJSON); err != nil {
		return p.fail(videoID, fmt.Errorf("completing video: %w", err))
	}
	p.logger.Info("processing stage", "video_id", videoID, "stage", "complete", "tags", len(tags))

	if p.recorder != nil {
		completed, err := p.store.GetVideo(videoID)
		if err == nil {
			p.recorder.RecordCompletion(completed)
		}
	}
	return nil
}

// fail records the terminal failure on the video and passes the error on
// to the job queue.
func (p *Pipeline) fail(videoID string, cause error) error {
	p.logger.Warn("processing stage", "video_id", videoID, "stage", "failed", "error", cause)
	if err := p.store.FailVideo(videoID, cause.Error()); err != nil {
		p.logger.Error("failed to record video failure", "video_id", videoID, "error", err)
	}
	return cause
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
