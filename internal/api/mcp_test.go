package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/ttyv/internal/chat"
	"github.com/kalambet/ttyv/internal/history"
	"github.com/kalambet/ttyv/internal/pipeline"
	"github.com/kalambet/ttyv/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return MCPDeps{
		Store:    env.store,
		Pipeline: env.pipe,
		Chat:     chat.NewService(env.store, env.completer, history.NewRecorder(env.store), chat.Config{}),
	}, env
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_SummarizeVideo(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpSummarizeVideo(deps)

	result, err := handler(context.Background(), makeCallToolRequest("summarize_video", map[string]interface{}{
		"url": testURL,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var submitted map[string]string
	if err := json.Unmarshal([]byte(toolText(t, result)), &submitted); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if submitted["video_id"] != testVideoID || submitted["status"] != "processing" {
		t.Fatalf("unexpected response: %v", submitted)
	}

	// The job must be in the queue.
	env.processQueued(t)
	v, err := env.store.GetVideo(testVideoID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if v.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want completed", v.Status)
	}
}

func TestMCPTool_SummarizeVideo_InvalidURL(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSummarizeVideo(deps)

	result, err := handler(context.Background(), makeCallToolRequest("summarize_video", map[string]interface{}{
		"url": "https://vimeo.com/123",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for non-YouTube URL")
	}
}

func TestMCPTool_VideoStatus(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpVideoStatus(deps)

	result, err := handler(context.Background(), makeCallToolRequest("video_status", map[string]interface{}{
		"video_id": "missing00000",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown video")
	}

	if _, err := env.pipe.Submit(testURL); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	result, err = handler(context.Background(), makeCallToolRequest("video_status", map[string]interface{}{
		"video_id": testVideoID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var st pipeline.Status
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatalf("failed to parse status: %v", err)
	}
	if st.Status != storage.StatusProcessing || st.Progress != 50 {
		t.Fatalf("status = %+v", st)
	}
}

func TestMCPTool_GetSummary(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpGetSummary(deps)

	if _, err := env.pipe.Submit(testURL); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Not completed yet: the tool refuses and points at video_status.
	result, err := handler(context.Background(), makeCallToolRequest("get_summary", map[string]interface{}{
		"video_id": testVideoID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result before processing finished")
	}

	env.processQueued(t)

	result, err = handler(context.Background(), makeCallToolRequest("get_summary", map[string]interface{}{
		"video_id": testVideoID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var summary struct {
		Title     string   `json:"title"`
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		Tags      []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &summary); err != nil {
		t.Fatalf("failed to parse summary: %v", err)
	}
	if summary.Title != "Go Concurrency Patterns" || summary.Summary == "" {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.KeyPoints) != 2 || len(summary.Tags) != 2 {
		t.Errorf("lists = %+v", summary)
	}
}

func TestMCPTool_AskVideo(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpAskVideo(deps)

	// Without a session or video there is nothing to ask.
	result, err := handler(context.Background(), makeCallToolRequest("ask_video", map[string]interface{}{
		"question": "what is it about?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without video_id or session_id")
	}

	env.submitAndProcess(t)

	result, err = handler(context.Background(), makeCallToolRequest("ask_video", map[string]interface{}{
		"question": "what is it about?",
		"video_id": testVideoID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var answer map[string]string
	if err := json.Unmarshal([]byte(toolText(t, result)), &answer); err != nil {
		t.Fatalf("failed to parse answer: %v", err)
	}
	if answer["answer"] != "It covers pipeline composition." {
		t.Errorf("answer = %q", answer["answer"])
	}
	if answer["session_id"] == "" {
		t.Fatal("no session_id returned")
	}

	// Continue the same conversation with the returned session.
	result, err = handler(context.Background(), makeCallToolRequest("ask_video", map[string]interface{}{
		"question":   "tell me more",
		"session_id": answer["session_id"],
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	msgs, err := env.store.ListMessages(answer["session_id"])
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("session has %d messages, want 4", len(msgs))
	}
}

func TestMCPTool_AskVideo_NotReady(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpAskVideo(deps)

	if _, err := env.pipe.Submit(testURL); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	result, err := handler(context.Background(), makeCallToolRequest("ask_video", map[string]interface{}{
		"question": "too early?",
		"video_id": testVideoID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unprocessed video")
	}
}

func TestMCPResource_History(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	env.submitAndProcess(t)

	handler := mcpResourceHistory(deps)
	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "ttyv://history"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var entries []struct {
		VideoID string `json:"video_id"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	if len(entries) != 1 || entries[0].VideoID != testVideoID {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Title != "Go Concurrency Patterns" {
		t.Errorf("title = %q", entries[0].Title)
	}
}
