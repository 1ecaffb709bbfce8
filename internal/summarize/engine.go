package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/ttyv/internal/llm"
)

const (
	defaultSummaryBudget   = 8000
	defaultKeyPointsBudget = 6000
	defaultTagsBudget      = 4000
	defaultMaxKeyPoints    = 8
	defaultMaxTags         = 10

	// Lines shorter than this are treated as list-marker noise, not points.
	minPointLength = 10
)

// Config carries the tuning knobs for the engine. Zero values fall back
// to defaults; the budgets are character counts applied to the transcript
// excerpt embedded in each prompt.
type Config struct {
	SummaryBudget   int
	KeyPointsBudget int
	TagsBudget      int
	MaxKeyPoints    int
	MaxTags         int
}

func (c Config) withDefaults() Config {
	if c.SummaryBudget <= 0 {
		c.SummaryBudget = defaultSummaryBudget
	}
	if c.KeyPointsBudget <= 0 {
		c.KeyPointsBudget = defaultKeyPointsBudget
	}
	if c.TagsBudget <= 0 {
		c.TagsBudget = defaultTagsBudget
	}
	if c.MaxKeyPoints <= 0 {
		c.MaxKeyPoints = defaultMaxKeyPoints
	}
	if c.MaxTags <= 0 {
		c.MaxTags = defaultMaxTags
	}
	return c
}

// Engine turns a transcript into a summary, key points, and tags through
// three independent completion calls.
type Engine struct {
	completer llm.Completer
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates an Engine using the given completion client.
func NewEngine(completer llm.Completer, cfg Config) *Engine {
	return &Engine{
		completer: completer,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
	}
}

// Summarize produces a natural-language summary of the transcript.
// Failures are fatal to the processing job.
func (e *Engine) Summarize(ctx context.Context, transcript, title, channel string, durationSeconds int) (string, error) {
	excerpt := TruncateAtWord(transcript, e.cfg.SummaryBudget)

	prompt := fmt.Sprintf(
		"Video title: %s\nChannel: %s\nDuration: %s\n\nTranscript:\n%s",
		title, channel, formatDuration(durationSeconds), excerpt,
	)
	messages := []llm.Message{
		{Role: "system", Content: "You summarize YouTube videos. Write a clear summary of 200-500 words covering the video's main content, arguments, and conclusions. Use only the transcript provided."},
		{Role: "user", Content: prompt},
	}

	text, err := e.completer.Complete(ctx, messages, llm.Options{Temperature: 0.5, MaxTokens: 1024})
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summary completion returned empty text")
	}
	return text, nil
}

// KeyPoints extracts an ordered list of at most MaxKeyPoints concise
// points. Failures are fatal to the processing job.
func (e *Engine) KeyPoints(ctx context.Context, transcript, title string) ([]string, error) {
	excerpt := TruncateAtWord(transcript, e.cfg.KeyPointsBudget)

	prompt := fmt.Sprintf("Video title: %s\n\nTranscript:\n%s", title, excerpt)
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf("Extract the %d most important points from this video transcript. Answer with one point per line, each prefixed with a dash. No preamble.", e.cfg.MaxKeyPoints)},
		{Role: "user", Content: prompt},
	}

	raw, err := e.completer.Complete(ctx, messages, llm.Options{Temperature: 0.3, MaxTokens: 512})
	if err != nil {
		return nil, fmt.Errorf("extracting key points: %w", err)
	}

	points := parseKeyPoints(raw, e.cfg.MaxKeyPoints)
	if len(points) == 0 {
		return nil, fmt.Errorf("key point completion produced no usable points")
	}
	return points, nil
}

// Tags generates at most MaxTags short topic tags. Tags are non-essential:
// on any completion failure this degrades to an empty list and logs,
// never failing the job.
func (e *Engine) Tags(ctx context.Context, transcript, title, channel string) []string {
	excerpt := TruncateAtWord(transcript, e.cfg.TagsBudget)

	prompt := fmt.Sprintf("Video title: %s\nChannel: %s\n\nTranscript:\n%s", title, channel, excerpt)
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf("Generate up to %d short topic tags for this video. Answer with a single comma-separated list, lowercase, no explanations.", e.cfg.MaxTags)},
		{Role: "user", Content: prompt},
	}

	raw, err := e.completer.Complete(ctx, messages, llm.Options{Temperature: 0.4, MaxTokens: 128})
	if err != nil {
		e.logger.Warn("tag generation failed, continuing without tags", "error", err)
		return []string{}
	}
	return parseTags(raw, e.cfg.MaxTags)
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
