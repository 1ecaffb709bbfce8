package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Worker processes video_process jobs from the SQLite job queue.
type Worker struct {
	pipe   *Pipeline
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker over the pipeline.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(pipe *Pipeline, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		pipe:   pipe,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single video_process job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.pipe.store.ClaimNextJob([]string{JobTypeProcess})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job.PayloadJSON); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.pipe.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.pipe.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type processPayload struct {
	VideoID string `json:"video_id"`
}

func (w *Worker) processJob(ctx context.Context, payloadJSON string) error {
	var payload processPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.VideoID == "" {
		return fmt.Errorf("payload missing video_id")
	}
	return w.pipe.process(ctx, payload.VideoID)
}
