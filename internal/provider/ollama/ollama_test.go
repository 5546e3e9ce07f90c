package ollama

import (
	"encoding/json"
	"testing"

	"aichat/internal/models"
	"aichat/internal/provider"
)

func newAdapter() provider.Adapter {
	return New(&provider.Profile{ID: "ollama", DisplayName: "Ollama"})
}

func TestPrepareMessageImages(t *testing.T) {
	raw, err := newAdapter().PrepareMessage(models.RoleUser, "Compare", []models.Upload{
		{Name: "a.txt", MIME: "text/plain", Content: []byte("x")},
		{Name: "one.png", MIME: "image/png", Content: []byte{0x00}},
		{Name: "two.webp", MIME: "IMAGE/WEBP", Content: []byte{0x00, 0x01}},
	})
	if err != nil {
		t.Fatalf("PrepareMessage() error = %v", err)
	}

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	want := "[start of file named \"a.txt\"]\n\nx\n\n[end of file named \"a.txt\"]\n\n\nfile names: one.png,two.webp\n\nCompare"
	if msg.Content != want {
		t.Fatalf("content = %q, want %q", msg.Content, want)
	}
	if len(msg.Images) != 2 || msg.Images[0] != "AA==" {
		t.Fatalf("unexpected images %v", msg.Images)
	}
}

func TestPrepareMessageWithoutUploads(t *testing.T) {
	raw, err := newAdapter().PrepareMessage(models.RoleAssistant, "Hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"role":"assistant","content":"Hello"}` {
		t.Fatalf("unexpected message %s", raw)
	}
}

func TestProcessChunkWithoutPrefix(t *testing.T) {
	a := newAdapter()

	got, ok, err := a.ProcessChunk(`{"message":{"role":"assistant","content":"Hel"},"done":false}`)
	if err != nil || !ok || got.Content != "Hel" {
		t.Fatalf("ProcessChunk() = %+v, %v, %v", got, ok, err)
	}

	got, _, _ = a.ProcessChunk(`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":26,"eval_count":290}`)
	if got != (models.Frame{InputTokens: 26, OutputTokens: 290}) {
		t.Fatalf("unexpected final frame %+v", got)
	}

	if _, _, err := a.ProcessChunk("data: {}"); err == nil {
		t.Fatal("prefixed frames are not valid for a bare JSON stream")
	}
}
