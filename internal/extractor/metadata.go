package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const maxWatchPageSize = 4 << 20 // 4MB

// metadataTier is one strategy in the fallback chain. Tiers are tried in
// order; the first success wins.
type metadataTier struct {
	name  string
	fetch func(ctx context.Context, videoID string) (Metadata, error)
}

// fetchMetadata walks the tier chain. The boolean reports whether any
// network tier produced real data; when all fail, the deterministic
// placeholder tier fills in so callers still get a renderable record.
func (e *Extractor) fetchMetadata(ctx context.Context, videoID string) (Metadata, bool) {
	tiers := []metadataTier{
		{name: "watch_page", fetch: e.watchPageMetadata},
		{name: "oembed", fetch: e.oembedMetadata},
	}

	for _, tier := range tiers {
		meta, err := tier.fetch(ctx, videoID)
		if err == nil {
			if meta.ThumbnailURL == "" {
				meta.ThumbnailURL = defaultThumbnailURL(videoID)
			}
			return meta, true
		}
		e.logger.Warn("metadata tier failed", "video_id", videoID, "tier", tier.name, "error", err)
	}

	return placeholderMetadata(videoID), false
}

// placeholderMetadata is the tertiary tier: fully deterministic, derived
// from the video ID alone.
func placeholderMetadata(videoID string) Metadata {
	return Metadata{
		Title:        "YouTube video " + videoID,
		ChannelName:  "Unknown channel",
		ThumbnailURL: defaultThumbnailURL(videoID),
	}
}

func defaultThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}

// watchPageMetadata scrapes the watch page's meta tags. This is the
// richest tier: it carries description, duration, and view counts that
// oEmbed lacks.
func (e *Extractor) watchPageMetadata(ctx context.Context, videoID string) (Metadata, error) {
	pageURL := e.watchBaseURL + "/watch?v=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetching watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	meta, err := parseWatchPage(io.LimitReader(resp.Body, maxWatchPageSize))
	if err != nil {
		return Metadata{}, err
	}
	if meta.Title == "" {
		return Metadata{}, fmt.Errorf("watch page carried no title metadata")
	}
	return meta, nil
}

// parseWatchPage extracts Open Graph and schema.org annotations from the
// page head.
func parseWatchPage(r io.Reader) (Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing watch page: %w", err)
	}

	var meta Metadata
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "meta" || n.Data == "link") {
			key, content := metaKeyContent(n)
			switch key {
			case "og:title":
				meta.Title = content
			case "og:description", "description":
				if meta.Description == "" {
					meta.Description = content
				}
			case "og:image":
				meta.ThumbnailURL = content
			case "duration":
				meta.DurationSeconds = parseISODuration(content)
			case "interactionCount":
				if v, err := strconv.ParseInt(content, 10, 64); err == nil {
					meta.ViewCount = v
				}
			case "datePublished", "uploadDate":
				if meta.PublishedAt == "" {
					meta.PublishedAt = content
				}
			case "name":
				// <link itemprop="name"> inside the author span holds the channel.
				if n.Data == "link" && meta.ChannelName == "" {
					meta.ChannelName = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta, nil
}

func metaKeyContent(n *html.Node) (key, content string) {
	for _, a := range n.Attr {
		switch a.Key {
		case "property", "itemprop", "name":
			if key == "" {
				key = a.Val
			}
		case "content":
			content = a.Val
		}
	}
	return key, content
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration like PT1H2M3S to
// seconds. Unparseable input yields 0.
func parseISODuration(s string) int {
	m := isoDurationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}

// oembedMetadata is the lightweight secondary tier: title, channel, and
// thumbnail only.
func (e *Extractor) oembedMetadata(ctx context.Context, videoID string) (Metadata, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.oembedURL+"?"+q.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetching oembed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Metadata{}, fmt.Errorf("decoding oembed response: %w", err)
	}
	if payload.Title == "" {
		return Metadata{}, fmt.Errorf("oembed response carried no title")
	}

	return Metadata{
		Title:        payload.Title,
		ChannelName:  payload.AuthorName,
		ThumbnailURL: payload.ThumbnailURL,
	}, nil
}
