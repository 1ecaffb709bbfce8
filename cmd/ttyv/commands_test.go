package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSubmitRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /videos": `{"video_id":"dQw4w9WgXcQ","status":"processing"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/videos", map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["video_id"] != "dQw4w9WgXcQ" {
		t.Errorf("video_id = %q", result["video_id"])
	}
	if result["status"] != "processing" {
		t.Errorf("status = %q, want processing", result["status"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["url"] != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("body.url = %q", body["url"])
	}
}

func TestSubmitCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"submit"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention the argument count", err.Error())
	}
}

func TestShowRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /videos/dQw4w9WgXcQ": `{"video_id":"dQw4w9WgXcQ","status":"completed","title":"Go Concurrency Patterns","summary":"A talk.","key_points":["pipelines compose"],"tags":["go"]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/videos/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v videoResult
	if err := decodeJSON(resp, &v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if v.Title != "Go Concurrency Patterns" {
		t.Errorf("title = %q", v.Title)
	}
	if len(v.KeyPoints) != 1 || v.KeyPoints[0] != "pipelines compose" {
		t.Errorf("key points = %v", v.KeyPoints)
	}
}

// TestErrorEnvelope: error responses surface the server's message, not
// raw JSON.
func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	resp, err := client.get(ctx, "/videos/missing00000")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var v videoResult
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want the envelope message", err.Error())
	}
}

func TestChatAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat/sess-1": `{"session_id":"sess-1","message_id":2,"answer":"It covers pipelines."}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/chat/sess-1", map[string]string{"question": "what is it about?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Answer != "It covers pipelines." {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestHistoryPatchRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /history/dQw4w9WgXcQ": `{"video_id":"dQw4w9WgXcQ","bookmarked":true,"access_count":3}`,
	})

	client := ts.client()
	bookmarked := true
	resp, err := client.patch(ctx, "/history/dQw4w9WgXcQ", map[string]any{"bookmarked": bookmarked})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["bookmarked"] != true {
		t.Errorf("bookmarked = %v, want true", result["bookmarked"])
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent["bookmarked"] != true {
		t.Errorf("sent body = %v", sent)
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, colorGreen) || !strings.Contains(result, colorReset) {
		t.Errorf("colorize with noColor=false should wrap in ANSI codes, got %q", result)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	msg := apiErrorMessage([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	if msg != "rate limited" {
		t.Errorf("message = %q, want 'rate limited'", msg)
	}

	raw := apiErrorMessage([]byte(`plain text failure`))
	if raw != "plain text failure" {
		t.Errorf("fallback = %q, want raw body", raw)
	}
}
