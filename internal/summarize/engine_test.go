package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/ttyv/internal/llm"
)

// fakeCompleter returns canned text or an error and records the prompts it saw.
type fakeCompleter struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

func TestTruncateAtWord(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		budget int
		want   string
	}{
		{"under budget", "short text", 100, "short text"},
		{"exactly budget", "ten chars.", 10, "ten chars."},
		{"cuts at word boundary", "alpha beta gamma", 12, "alpha beta"},
		{"cut lands on space", "alpha beta gamma", 11, "alpha beta"},
		{"single overlong word", "abcdefghij", 5, "abcde"},
		{"zero budget passes through", "anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := TruncateAtWord(tt.text, tt.budget); got != tt.want {
			t.Errorf("%s: TruncateAtWord = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseKeyPoints(t *testing.T) {
	raw := strings.Join([]string{
		"- First important takeaway here",
		"• Second important takeaway here",
		"3. Third important takeaway here",
		"4) Fourth important takeaway here",
		"- ok", // below the minimum point length
		"",
		"Fifth point without any marker",
	}, "\n")

	points := parseKeyPoints(raw, 10)
	want := []string{
		"First important takeaway here",
		"Second important takeaway here",
		"Third important takeaway here",
		"Fourth important takeaway here",
		"Fifth point without any marker",
	}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d: %v", len(points), len(want), points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %q, want %q", i, points[i], want[i])
		}
	}

	if got := parseKeyPoints(raw, 2); len(got) != 2 {
		t.Errorf("cap ignored: %v", got)
	}
}

func TestParseTags(t *testing.T) {
	tags := parseTags("Go, Concurrency , #testing\nDistributed-Systems, , \"databases\"", 10)
	want := []string{"go", "concurrency", "testing", "distributed-systems", "databases"}
	if len(tags) != len(want) {
		t.Fatalf("got %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d = %q, want %q", i, tags[i], want[i])
		}
	}

	if got := parseTags("a, b, c, d", 2); len(got) != 2 {
		t.Errorf("cap ignored: %v", got)
	}
	long := strings.Repeat("x", 41)
	if got := parseTags(long, 10); len(got) != 0 {
		t.Errorf("overlong tag kept: %v", got)
	}
}

func TestSummarize(t *testing.T) {
	fake := &fakeCompleter{reply: "  A concise summary.  "}
	e := NewEngine(fake, Config{SummaryBudget: 20})

	got, err := e.Summarize(context.Background(), "one two three four five six seven", "Title", "Channel", 125)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "A concise summary." {
		t.Errorf("summary = %q", got)
	}

	prompt := fake.calls[0][1].Content
	if !strings.Contains(prompt, "Title") || !strings.Contains(prompt, "2:05") {
		t.Errorf("prompt missing metadata: %q", prompt)
	}
	// Budget of 20 must have trimmed the transcript at a word boundary.
	if strings.Contains(prompt, "five") {
		t.Errorf("transcript not truncated: %q", prompt)
	}
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	e := NewEngine(&fakeCompleter{reply: "   "}, Config{})
	if _, err := e.Summarize(context.Background(), "t", "title", "ch", 0); err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestKeyPointsPropagatesError(t *testing.T) {
	e := NewEngine(&fakeCompleter{err: errors.New("boom")}, Config{})
	if _, err := e.KeyPoints(context.Background(), "t", "title"); err == nil {
		t.Fatal("expected error")
	}
}

func TestKeyPointsNoUsableOutput(t *testing.T) {
	e := NewEngine(&fakeCompleter{reply: "- a\n- b\n"}, Config{})
	if _, err := e.KeyPoints(context.Background(), "t", "title"); err == nil {
		t.Fatal("expected error when every line is below the minimum length")
	}
}

// TestTagsDegradeOnFailure: tag generation absorbs completion errors and
// returns an empty list instead of failing the job.
func TestTagsDegradeOnFailure(t *testing.T) {
	e := NewEngine(&fakeCompleter{err: errors.New("rate limited")}, Config{})
	tags := e.Tags(context.Background(), "t", "title", "ch")
	if tags == nil || len(tags) != 0 {
		t.Errorf("Tags = %v, want empty non-nil slice", tags)
	}
}

func TestTagsHappyPath(t *testing.T) {
	e := NewEngine(&fakeCompleter{reply: "go, testing, http"}, Config{MaxTags: 2})
	tags := e.Tags(context.Background(), "t", "title", "ch")
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "testing" {
		t.Errorf("Tags = %v", tags)
	}
}
