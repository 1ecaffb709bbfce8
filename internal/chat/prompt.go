package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/ttyv/internal/llm"
	"github.com/kalambet/ttyv/internal/storage"
	"github.com/kalambet/ttyv/internal/summarize"
)

const systemInstruction = "You answer questions about a single YouTube video. " +
	"Ground every answer in the video context below. When the context does not " +
	"contain the answer, say so instead of speculating."

// buildPrompt assembles the completion messages for one question: the
// system instruction with the video context block, the replayed recent
// turns, and the question itself last.
func buildPrompt(v storage.Video, window []storage.ChatMessage, question string, excerptBudget int) []llm.Message {
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: systemInstruction + "\n\n" + buildContextBlock(v, excerptBudget),
	})
	for _, m := range window {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// buildContextBlock renders the stored video fields into the labelled
// sections the system prompt carries. Empty fields are skipped so degraded
// records (synthesized transcript, no tags) still produce a clean block.
func buildContextBlock(v storage.Video, excerptBudget int) string {
	var sb strings.Builder

	sb.WriteString("[Video]\n")
	sb.WriteString("Title: " + v.Title + "\n")
	if v.ChannelName != "" {
		sb.WriteString("Channel: " + v.ChannelName + "\n")
	}

	if v.Summary != "" {
		sb.WriteString("\n[Summary]\n")
		sb.WriteString(v.Summary)
		sb.WriteString("\n")
	}

	if points := decodeList(v.KeyPoints); len(points) > 0 {
		sb.WriteString("\n[Key Points]\n")
		for i, p := range points {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
		}
	}

	if v.Transcript != "" {
		sb.WriteString("\n[Transcript Excerpt]\n")
		if v.TranscriptSource == storage.TranscriptSynthesized {
			sb.WriteString("(No captions were available; this is derived from the video's metadata.)\n")
		}
		sb.WriteString(summarize.TruncateAtWord(v.Transcript, excerptBudget))
		sb.WriteString("\n")
	}

	return sb.String()
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
