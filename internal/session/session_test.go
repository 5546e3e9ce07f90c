package session

import (
	"context"
	"encoding/json"
	"testing"

	"aichat/internal/models"
	"aichat/internal/usage"
)

func TestHistoryAppendUndoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore(0), testKey)

	h := History{}
	h.Append(json.RawMessage(`{"role":"user","content":"hi"}`), models.HistoryEntry{Role: models.RoleUser, Prompt: "hi"})
	h.Append(json.RawMessage(`{"role":"assistant","content":"hello"}`), models.HistoryEntry{Role: models.RoleAssistant, Prompt: "hello"})
	if err := s.SaveHistory(ctx, h); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}
	before, _ := s.History(ctx)

	after := before
	after.Append(json.RawMessage(`{"role":"user","content":"again"}`), models.HistoryEntry{Role: models.RoleUser, Prompt: "again"})
	if err := s.SaveHistory(ctx, after); err != nil {
		t.Fatal(err)
	}
	if err := s.UndoHistory(ctx); err != nil {
		t.Fatalf("UndoHistory() error = %v", err)
	}

	got, err := s.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != before.Len() || len(got.Display) != len(before.Display) {
		t.Fatalf("history length = %d/%d, want %d", got.Len(), len(got.Display), before.Len())
	}
	for i := range before.Messages {
		if string(got.Messages[i]) != string(before.Messages[i]) || got.Display[i] != before.Display[i] {
			t.Fatalf("entry %d changed: %s %+v", i, got.Messages[i], got.Display[i])
		}
	}
}

func TestUndoOnEmptyHistory(t *testing.T) {
	s := New(NewMemoryStore(0), testKey)
	if err := s.UndoHistory(context.Background()); err != nil {
		t.Fatalf("UndoHistory() error = %v", err)
	}
	h, _ := s.History(context.Background())
	if h.Len() != 0 {
		t.Fatalf("expected empty history, got %d", h.Len())
	}
}

func TestSaveHistoryRejectsMismatch(t *testing.T) {
	s := New(NewMemoryStore(0), testKey)
	err := s.SaveHistory(context.Background(), History{Messages: []json.RawMessage{json.RawMessage(`{}`)}})
	if err == nil {
		t.Fatal("expected error for unequal history sequences")
	}
}

func TestUploadsAndInfo(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore(0), testKey)

	uploads := []models.Upload{{Name: "a.bin", MIME: "application/octet-stream", Content: []byte{0x00, 0xFF}}}
	if err := s.SetUploads(ctx, uploads); err != nil {
		t.Fatal(err)
	}
	got, err := s.Uploads(ctx)
	if err != nil || len(got) != 1 || got[0].Content[1] != 0xFF {
		t.Fatalf("Uploads() = %+v, %v", got, err)
	}
	if err := s.ClearUploads(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Uploads(ctx); len(got) != 0 {
		t.Fatalf("uploads not cleared: %+v", got)
	}

	info := usage.Info{}
	info.Add(usage.Counters{Input: 10, Output: 5}, usage.NewPricing(1, 2))
	if err := s.SetInfo(ctx, info); err != nil {
		t.Fatal(err)
	}
	stored, err := s.Info(ctx)
	if err != nil || stored.InputTokens != 10 || !stored.Cost.Equal(info.Cost) {
		t.Fatalf("Info() = %+v, %v", stored, err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if stored, _ := s.Info(ctx); stored.InputTokens != 0 {
		t.Fatalf("reset must clear info, got %+v", stored)
	}
}
