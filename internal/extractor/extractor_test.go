package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		url    string
		wantID string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"http://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=share", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		id, err := Resolve(tt.url)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.url, err)
			continue
		}
		if id != tt.wantID {
			t.Errorf("Resolve(%q) = %q, want %q", tt.url, id, tt.wantID)
		}
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	bad := []string{
		"",
		"not a url",
		"ftp://youtube.com/watch?v=dQw4w9WgXcQ",
		"https://vimeo.com/12345678901",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/playlist?list=PL123",
		"https://www.youtube.com/shorts/",
		"https://youtu.be/",
		"https://www.youtube.com/watch?v=has spaces!",
	}
	for _, u := range bad {
		if _, err := Resolve(u); !errors.Is(err, ErrInvalidSource) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidSource", u, err)
		}
	}
}

const testWatchPage = `<!DOCTYPE html><html><head>
<meta property="og:title" content="Go Concurrency Patterns">
<meta property="og:description" content="A talk about pipelines &amp; cancellation.">
<meta property="og:image" content="https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg">
<meta itemprop="duration" content="PT1H2M3S">
<meta itemprop="interactionCount" content="123456">
<meta itemprop="datePublished" content="2024-03-01">
<span itemprop="author"><link itemprop="name" content="GopherCon"></span>
</head><body></body></html>`

// testServer wires all three upstream endpoints onto one httptest server.
// Each handler may be nil for a 404.
func testServer(t *testing.T, watch, oembed, timedtext http.HandlerFunc) *Extractor {
	t.Helper()
	mux := http.NewServeMux()
	register := func(pattern string, h http.HandlerFunc) {
		if h == nil {
			h = func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }
		}
		mux.HandleFunc(pattern, h)
	}
	register("/watch", watch)
	register("/oembed", oembed)
	register("/timedtext", timedtext)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewWithEndpoints(srv.Client(), srv.URL, srv.URL+"/oembed", srv.URL+"/timedtext")
}

func serveCaptions(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			w.Write([]byte(`<transcript_list><track lang_code="en" name=""/></transcript_list>`))
			return
		}
		if r.URL.Query().Get("lang") != "en" {
			return // empty body, treated as missing track
		}
		w.Write([]byte(`<transcript><text start="0">Hello &amp; welcome</text><text start="2">to the  talk</text></transcript>`))
	}
}

func TestFetchWithCaptions(t *testing.T) {
	e := testServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("v"); got != "dQw4w9WgXcQ" {
				t.Errorf("watch page requested for %q", got)
			}
			w.Write([]byte(testWatchPage))
		},
		nil,
		serveCaptions(t),
	)

	res, err := e.Fetch(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if res.Transcript != "Hello & welcome to the talk" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.TranscriptSource != "captions" {
		t.Errorf("TranscriptSource = %q", res.TranscriptSource)
	}
	m := res.Metadata
	if m.Title != "Go Concurrency Patterns" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Description != "A talk about pipelines & cancellation." {
		t.Errorf("Description = %q", m.Description)
	}
	if m.DurationSeconds != 3723 {
		t.Errorf("DurationSeconds = %d", m.DurationSeconds)
	}
	if m.ChannelName != "GopherCon" {
		t.Errorf("ChannelName = %q", m.ChannelName)
	}
	if m.ViewCount != 123456 {
		t.Errorf("ViewCount = %d", m.ViewCount)
	}
	if m.PublishedAt != "2024-03-01" {
		t.Errorf("PublishedAt = %q", m.PublishedAt)
	}
}

// TestFetchOEmbedFallback degrades to oEmbed when the watch page is down.
func TestFetchOEmbedFallback(t *testing.T) {
	e := testServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"title":"Fallback Title","author_name":"Fallback Channel","thumbnail_url":"https://example.test/t.jpg"}`))
		},
		serveCaptions(t),
	)

	res, err := e.Fetch(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Metadata.Title != "Fallback Title" || res.Metadata.ChannelName != "Fallback Channel" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	if res.TranscriptSource != "captions" {
		t.Errorf("TranscriptSource = %q", res.TranscriptSource)
	}
}

// TestFetchSynthesizesTranscript covers the degraded path: real metadata,
// no captions anywhere.
func TestFetchSynthesizesTranscript(t *testing.T) {
	e := testServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(testWatchPage))
		},
		nil,
		nil,
	)

	res, err := e.Fetch(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.TranscriptSource != "synthesized" {
		t.Errorf("TranscriptSource = %q", res.TranscriptSource)
	}
	if !strings.Contains(res.Transcript, "Go Concurrency Patterns") {
		t.Errorf("synthesized transcript missing title: %q", res.Transcript)
	}
	if !strings.Contains(res.Transcript, "GopherCon") {
		t.Errorf("synthesized transcript missing channel: %q", res.Transcript)
	}
}

// TestFetchFailsWithoutAnySource is the only fatal combination: every
// metadata tier down and no captions.
func TestFetchFailsWithoutAnySource(t *testing.T) {
	e := testServer(t, nil, nil, nil)

	_, err := e.Fetch(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Fetch = %v, want ErrExtractionFailed", err)
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"PT1H2M3S", 3723},
		{"PT15M", 900},
		{"PT42S", 42},
		{"PT2H", 7200},
		{"", 0},
		{"1:02:03", 0},
		{"PTXS", 0},
	}
	for _, tt := range tests {
		if got := parseISODuration(tt.in); got != tt.want {
			t.Errorf("parseISODuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCaptionText(t *testing.T) {
	got := normalizeCaptionText([]string{"Hello &amp; welcome\n", "  to the\ttalk  ", ""})
	if got != "Hello & welcome to the talk" {
		t.Errorf("normalizeCaptionText = %q", got)
	}
}
