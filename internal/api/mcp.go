package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ttyv/internal/chat"
	"github.com/kalambet/ttyv/internal/extractor"
	"github.com/kalambet/ttyv/internal/pipeline"
	"github.com/kalambet/ttyv/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Pipeline *pipeline.Pipeline
	Chat     *chat.Service
}

// NewMCPServer creates an MCP server with all ttyv tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ttyv",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ttyv — local YouTube summarization service: submit videos, read summaries, ask follow-up questions."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("summarize_video",
			mcp.WithDescription("Submit a YouTube URL for transcript extraction and summarization. Returns immediately; poll video_status for progress."),
			mcp.WithString("url", mcp.Description("YouTube video URL"), mcp.Required()),
		),
		mcpSummarizeVideo(deps),
	)

	s.AddTool(
		mcp.NewTool("video_status",
			mcp.WithDescription("Check the processing status of a submitted video."),
			mcp.WithString("video_id", mcp.Description("YouTube video ID"), mcp.Required()),
		),
		mcpVideoStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("get_summary",
			mcp.WithDescription("Fetch the summary, key points, and tags of a completed video."),
			mcp.WithString("video_id", mcp.Description("YouTube video ID"), mcp.Required()),
		),
		mcpGetSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_video",
			mcp.WithDescription("Ask a question about a processed video. Starts a chat session when session_id is omitted; pass the returned session_id to continue the conversation."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("video_id", mcp.Description("YouTube video ID (required when starting a new session)")),
			mcp.WithString("session_id", mcp.Description("Existing chat session to continue")),
		),
		mcpAskVideo(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"ttyv://history",
			"Watch History",
			mcp.WithResourceDescription("Recently summarized videos, bookmarked first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

func mcpSummarizeVideo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		v, err := deps.Pipeline.Submit(url)
		if errors.Is(err, extractor.ErrInvalidSource) {
			return mcpError(fmt.Sprintf("not a recognizable YouTube URL: %v", err)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("submission failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"video_id": v.VideoID,
			"status":   v.Status,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpVideoStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		videoID, err := req.RequireString("video_id")
		if err != nil {
			return mcpError("video_id is required"), nil
		}

		st, err := deps.Pipeline.Status(videoID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("video %s not found", videoID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("status lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(st)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		videoID, err := req.RequireString("video_id")
		if err != nil {
			return mcpError("video_id is required"), nil
		}

		v, err := deps.Store.GetVideo(videoID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("video %s not found", videoID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		if v.Status != storage.StatusCompleted {
			return mcpError(fmt.Sprintf("video %s is %s; check video_status", videoID, v.Status)), nil
		}

		b, err := json.Marshal(map[string]any{
			"video_id":   v.VideoID,
			"title":      v.Title,
			"channel":    v.ChannelName,
			"summary":    v.Summary,
			"key_points": decodeJSONList(v.KeyPoints),
			"tags":       decodeJSONList(v.Tags),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskVideo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			videoID := req.GetString("video_id", "")
			if videoID == "" {
				return mcpError("video_id is required when session_id is not given"), nil
			}
			sess, err := deps.Chat.StartSession(videoID)
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("video %s not found", videoID)), nil
			}
			if errors.Is(err, chat.ErrJobNotReady) {
				return mcpError(fmt.Sprintf("video %s has not finished processing", videoID)), nil
			}
			if err != nil {
				return mcpError(fmt.Sprintf("could not start session: %v", err)), nil
			}
			sessionID = sess.SessionID
		}

		reply, err := deps.Chat.Answer(ctx, sessionID, question)
		if err != nil {
			return mcpError(fmt.Sprintf("answer failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"session_id": sessionID,
			"answer":     reply.Content,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListHistory(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		type historySummary struct {
			VideoID    string `json:"video_id"`
			Title      string `json:"title"`
			Channel    string `json:"channel,omitempty"`
			Bookmarked bool   `json:"bookmarked"`
			LastAccess string `json:"last_accessed_at"`
		}

		summaries := make([]historySummary, len(entries))
		for i, h := range entries {
			title := h.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries[i] = historySummary{
				VideoID:    h.VideoID,
				Title:      title,
				Channel:    h.ChannelName,
				Bookmarked: h.Bookmarked,
				LastAccess: h.LastAccessedAt.UTC().Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
