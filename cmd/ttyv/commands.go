package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/ttyv/internal/config"
)

// videoResult mirrors the server's video JSON.
type videoResult struct {
	VideoID         string   `json:"video_id"`
	Status          string   `json:"status"`
	Title           string   `json:"title"`
	ChannelName     string   `json:"channel_name"`
	DurationSeconds int      `json:"duration_seconds"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	Tags            []string `json:"tags"`
	Error           string   `json:"error"`
}

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Submit a YouTube video for summarization",
	Long: `Submit a YouTube video for summarization.

Examples:
  ttyv submit https://www.youtube.com/watch?v=dQw4w9WgXcQ
  ttyv submit --no-wait https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noWait, _ := cmd.Flags().GetBool("no-wait")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		resp, err := client.post(ctx, "/videos", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}

		var submitted struct {
			VideoID string `json:"video_id"`
			Status  string `json:"status"`
		}
		if err := decodeJSON(resp, &submitted); err != nil {
			return err
		}

		if submitted.Status == "completed" {
			printSuccess("Already summarized: %s", submitted.VideoID)
			return showVideo(ctx, client, submitted.VideoID)
		}

		printStep("Queued %s", submitted.VideoID)
		if noWait {
			fmt.Printf("%s\n", submitted.VideoID)
			return nil
		}

		if err := waitForVideo(ctx, client, submitted.VideoID); err != nil {
			return err
		}
		return showVideo(ctx, client, submitted.VideoID)
	},
}

func waitForVideo(ctx context.Context, client *apiClient, videoID string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}

		resp, err := client.get(ctx, "/videos/"+videoID+"/status")
		if err != nil {
			return err
		}

		var st struct {
			Status   string `json:"status"`
			Progress int    `json:"progress"`
			Error    string `json:"error"`
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		switch st.Status {
		case "completed":
			printSuccess("Done")
			return nil
		case "failed":
			return fmt.Errorf("processing failed: %s", st.Error)
		default:
			printStep("%s (%d%%)", st.Status, st.Progress)
		}
	}
}

func showVideo(ctx context.Context, client *apiClient, videoID string) error {
	resp, err := client.get(ctx, "/videos/"+videoID)
	if err != nil {
		return err
	}

	var v videoResult
	if err := decodeJSON(resp, &v); err != nil {
		return err
	}

	fmt.Printf("\n%s\n", colorize(colorBold, v.Title))
	if v.ChannelName != "" {
		fmt.Printf("%s", v.ChannelName)
		if v.DurationSeconds > 0 {
			fmt.Printf(" · %d:%02d", v.DurationSeconds/60, v.DurationSeconds%60)
		}
		fmt.Println()
	}
	if v.Status == "failed" {
		printError("failed: %s", v.Error)
		return nil
	}
	if v.Summary != "" {
		fmt.Printf("\n%s\n", v.Summary)
	}
	if len(v.KeyPoints) > 0 {
		fmt.Printf("\n%s\n", colorize(colorBold, "Key points"))
		for i, p := range v.KeyPoints {
			fmt.Printf("  %d. %s\n", i+1, p)
		}
	}
	if len(v.Tags) > 0 {
		fmt.Printf("\n%s %s\n", colorize(colorBold, "Tags:"), strings.Join(v.Tags, ", "))
	}
	return nil
}

func init() {
	submitCmd.Flags().Bool("no-wait", false, "queue the video and exit without waiting")
}

// --- list / show / delete ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List submitted videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/videos?limit=%d", limit))
		if err != nil {
			return err
		}

		var videos []videoResult
		if err := decodeJSON(resp, &videos); err != nil {
			return err
		}

		if len(videos) == 0 {
			fmt.Println("No videos found.")
			return nil
		}

		for _, v := range videos {
			title := v.Title
			if title == "" {
				title = "(untitled)"
			}
			if len(title) > 80 {
				title = title[:80] + "..."
			}
			fmt.Printf("%s  %-10s  %s\n",
				colorize(colorCyan, v.VideoID),
				v.Status,
				title,
			)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <video-id>",
	Short: "Show the summary of a processed video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if jsonOut {
			resp, err := client.get(cmd.Context(), "/videos/"+args[0])
			if err != nil {
				return err
			}
			var v any
			if err := decodeJSON(resp, &v); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}

		return showVideo(cmd.Context(), client, args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <video-id>",
	Short: "Delete a video and its chat sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/videos/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	listCmd.Flags().Int("limit", 20, "maximum number of videos to list")
	showCmd.Flags().Bool("json", false, "print the full record as JSON")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <video-id>",
	Short: "Ask follow-up questions about a processed video",
	Long: `Ask follow-up questions about a processed video.

Starts an interactive session; type a question per line, Ctrl-D to end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		resp, err := client.post(ctx, "/videos/"+args[0]+"/chat", nil)
		if err != nil {
			return err
		}

		var sess struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}

		printStep("Chat session %s — ask away (Ctrl-D to end)", sess.SessionID[:8])

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
		for {
			fmt.Fprint(os.Stderr, colorize(colorBold, "> "))
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			resp, err := client.post(ctx, "/chat/"+sess.SessionID, map[string]string{"question": question})
			if err != nil {
				return err
			}
			var answer struct {
				Answer string `json:"answer"`
			}
			if err := decodeJSON(resp, &answer); err != nil {
				printError("%v", err)
				continue
			}
			fmt.Printf("\n%s\n\n", answer.Answer)
		}

		closeResp, err := client.post(ctx, "/chat/"+sess.SessionID+"/close", nil)
		if err == nil {
			closeResp.Body.Close()
		}
		fmt.Fprintln(os.Stderr)
		return scanner.Err()
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and annotate watch history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List summarized videos, bookmarked first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var entries []struct {
			VideoID     string `json:"video_id"`
			Title       string `json:"title"`
			ChannelName string `json:"channel_name"`
			Bookmarked  bool   `json:"bookmarked"`
			Rating      int    `json:"rating"`
			AccessCount int    `json:"access_count"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		for _, e := range entries {
			marker := " "
			if e.Bookmarked {
				marker = colorize(colorYellow, "★")
			}
			rating := ""
			if e.Rating > 0 {
				rating = fmt.Sprintf(" [%d/5]", e.Rating)
			}
			title := e.Title
			if len(title) > 70 {
				title = title[:70] + "..."
			}
			fmt.Printf("%s %s  %s%s\n", marker, colorize(colorCyan, e.VideoID), title, rating)
		}
		return nil
	},
}

var historyBookmarkCmd = &cobra.Command{
	Use:   "bookmark <video-id>",
	Short: "Toggle the bookmark on a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		resp, err := client.get(ctx, "/history/"+args[0])
		if err != nil {
			return err
		}
		var entry struct {
			Bookmarked bool `json:"bookmarked"`
		}
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		next := !entry.Bookmarked
		patchResp, err := client.patch(ctx, "/history/"+args[0], map[string]any{"bookmarked": next})
		if err != nil {
			return err
		}
		var updated any
		if err := decodeJSON(patchResp, &updated); err != nil {
			return err
		}

		if next {
			printSuccess("Bookmarked %s", args[0])
		} else {
			printSuccess("Removed bookmark from %s", args[0])
		}
		return nil
	},
}

var historyRateCmd = &cobra.Command{
	Use:   "rate <video-id> <1-5>",
	Short: "Rate a summarized video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("rating must be a number: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/history/"+args[0], map[string]any{"rating": rating})
		if err != nil {
			return err
		}
		var updated any
		if err := decodeJSON(resp, &updated); err != nil {
			return err
		}

		printSuccess("Rated %s %d/5", args[0], rating)
		return nil
	},
}

var historyNoteCmd = &cobra.Command{
	Use:   "note <video-id> <text>",
	Short: "Attach a note to a history entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		note := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/history/"+args[0], map[string]any{"notes": note})
		if err != nil {
			return err
		}
		var updated any
		if err := decodeJSON(resp, &updated); err != nil {
			return err
		}

		printSuccess("Noted")
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of entries to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyBookmarkCmd)
	historyCmd.AddCommand(historyRateCmd)
	historyCmd.AddCommand(historyNoteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
