package storage

import (
	"errors"
	"testing"
)

// TestUpsertHistoryPreservesAnnotations refreshes an entry and checks the
// user-owned fields and access counter survive.
func TestUpsertHistoryPreservesAnnotations(t *testing.T) {
	s := openTestStore(t)

	entry := HistoryEntry{VideoID: "hist00000001", Title: "First Title", ChannelName: "Chan"}
	if err := s.UpsertHistory(entry); err != nil {
		t.Fatalf("UpsertHistory: %v", err)
	}

	bookmarked := true
	rating := 4
	notes := "rewatch the middle section"
	if err := s.UpdateHistoryAnnotations("hist00000001", &bookmarked, &rating, &notes); err != nil {
		t.Fatalf("UpdateHistoryAnnotations: %v", err)
	}
	if err := s.TouchHistory("hist00000001"); err != nil {
		t.Fatalf("TouchHistory: %v", err)
	}

	entry.Title = "Corrected Title"
	if err := s.UpsertHistory(entry); err != nil {
		t.Fatalf("second UpsertHistory: %v", err)
	}

	h, err := s.GetHistory("hist00000001")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if h.Title != "Corrected Title" {
		t.Errorf("Title = %q, want refreshed", h.Title)
	}
	if !h.Bookmarked || h.Rating != 4 || h.Notes != notes {
		t.Errorf("annotations lost: %+v", h)
	}
	if h.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", h.AccessCount)
	}
}

func TestTouchHistoryIncrements(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertHistory(HistoryEntry{VideoID: "hist00000002", Title: "t"}); err != nil {
		t.Fatalf("UpsertHistory: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.TouchHistory("hist00000002"); err != nil {
			t.Fatalf("TouchHistory %d: %v", i, err)
		}
	}

	h, err := s.GetHistory("hist00000002")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if h.AccessCount != 3 {
		t.Errorf("AccessCount = %d, want 3", h.AccessCount)
	}

	if err := s.TouchHistory("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TouchHistory(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdateHistoryAnnotationsValidatesRating(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertHistory(HistoryEntry{VideoID: "hist00000003", Title: "t"}); err != nil {
		t.Fatalf("UpsertHistory: %v", err)
	}

	for _, bad := range []int{0, 6, -1} {
		rating := bad
		err := s.UpdateHistoryAnnotations("hist00000003", nil, &rating, nil)
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d accepted: %v", bad, err)
		}
	}

	// Partial update: only notes, rating untouched.
	notes := "n"
	if err := s.UpdateHistoryAnnotations("hist00000003", nil, nil, &notes); err != nil {
		t.Fatalf("notes-only update: %v", err)
	}
	h, err := s.GetHistory("hist00000003")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if h.Rating != 0 || h.Notes != "n" {
		t.Errorf("partial update wrong: %+v", h)
	}
}

// TestListHistoryOrder puts bookmarked entries first, then recency.
func TestListHistoryOrder(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"hist0000000a", "hist0000000b", "hist0000000c"} {
		if err := s.UpsertHistory(HistoryEntry{VideoID: id, Title: id}); err != nil {
			t.Fatalf("UpsertHistory %s: %v", id, err)
		}
	}
	bookmarked := true
	if err := s.UpdateHistoryAnnotations("hist0000000b", &bookmarked, nil, nil); err != nil {
		t.Fatalf("UpdateHistoryAnnotations: %v", err)
	}
	// hist0000000c accessed last.
	if err := s.TouchHistory("hist0000000c"); err != nil {
		t.Fatalf("TouchHistory: %v", err)
	}

	entries, err := s.ListHistory(10, 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].VideoID != "hist0000000b" {
		t.Errorf("bookmarked entry not first: %s", entries[0].VideoID)
	}
}
