package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxTranscriptSize = 8 << 20 // 8MB

// fetchTranscript tries the video's own caption track list first
// (language-agnostic), then an ordered list of language variants. All
// failures here are recoverable: the caller synthesizes a substitute.
func (e *Extractor) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	langs, err := e.listCaptionTracks(ctx, videoID)
	if err != nil {
		e.logger.Debug("caption track list unavailable", "video_id", videoID, "error", err)
	}
	langs = append(langs, e.langs...)

	var lastErr error = fmt.Errorf("no caption languages to try")
	seen := make(map[string]bool)
	for _, lang := range langs {
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true

		text, err := e.fetchCaptionTrack(ctx, videoID, lang)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("no captions for %s: %w", videoID, lastErr)
}

// listCaptionTracks asks the timedtext endpoint which caption languages
// exist for the video.
func (e *Extractor) listCaptionTracks(ctx context.Context, videoID string) ([]string, error) {
	q := url.Values{}
	q.Set("type", "list")
	q.Set("v", videoID)

	body, err := e.getTimedtext(ctx, q)
	if err != nil {
		return nil, err
	}

	var list struct {
		Tracks []struct {
			LangCode string `xml:"lang_code,attr"`
		} `xml:"track"`
	}
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing track list: %w", err)
	}

	langs := make([]string, 0, len(list.Tracks))
	for _, t := range list.Tracks {
		langs = append(langs, t.LangCode)
	}
	return langs, nil
}

// fetchCaptionTrack downloads and flattens one caption track.
func (e *Extractor) fetchCaptionTrack(ctx context.Context, videoID, lang string) (string, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)

	body, err := e.getTimedtext(ctx, q)
	if err != nil {
		return "", err
	}
	// YouTube answers 200 with an empty body when the track does not exist.
	if len(body) == 0 {
		return "", fmt.Errorf("empty caption track for lang %s", lang)
	}

	var transcript struct {
		Texts []string `xml:"text"`
	}
	if err := xml.Unmarshal(body, &transcript); err != nil {
		return "", fmt.Errorf("parsing caption track %s: %w", lang, err)
	}
	if len(transcript.Texts) == 0 {
		return "", fmt.Errorf("caption track %s contained no text", lang)
	}

	return normalizeCaptionText(transcript.Texts), nil
}

func (e *Extractor) getTimedtext(ctx context.Context, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.timedtextURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching timedtext: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTranscriptSize))
}

// normalizeCaptionText joins caption fragments into flowing text:
// entities unescaped, whitespace collapsed.
func normalizeCaptionText(fragments []string) string {
	var words []string
	for _, f := range fragments {
		words = append(words, strings.Fields(html.UnescapeString(f))...)
	}
	return strings.Join(words, " ")
}
