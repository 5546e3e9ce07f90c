package cohere

import (
	"encoding/json"
	"errors"
	"testing"

	"aichat/internal/models"
	"aichat/internal/provider"
)

func newAdapter() provider.Adapter {
	return New(&provider.Profile{ID: "cohere", DisplayName: "Cohere"})
}

func TestPrepareRequestFlattensHistory(t *testing.T) {
	msgs := []json.RawMessage{
		json.RawMessage(`{"role":"user","content":"Hi"}`),
		json.RawMessage(`{"role":"assistant","content":"Hello!"}`),
		json.RawMessage(`{"role":"user","content":"How are you?"}`),
	}

	body, err := newAdapter().PrepareRequest("command-r", true, msgs)
	if err != nil {
		t.Fatalf("PrepareRequest() error = %v", err)
	}
	if body["prompt"] != "How are you?" {
		t.Fatalf("prompt = %v", body["prompt"])
	}
	if body["context"] != "Human: Hi\nAssistant: Hello!\n" {
		t.Fatalf("context = %q", body["context"])
	}
	if body["model"] != "command-r" || body["stream"] != true {
		t.Fatalf("unexpected body %v", body)
	}

	body, _ = newAdapter().PrepareRequest("command-r", false, msgs[:1])
	if body["context"] != "" {
		t.Fatalf("single message must have empty context, got %q", body["context"])
	}
}

func TestDecode(t *testing.T) {
	a := newAdapter()

	got, ok, err := a.ProcessChunk(`{"is_finished":false,"text":"Hey"}`)
	if err != nil || !ok || got.Content != "Hey" {
		t.Fatalf("ProcessChunk() = %+v, %v, %v", got, ok, err)
	}

	got, _, _ = a.ProcessChunk(`{"is_finished":true,"response":{"meta":{"billed_units":{"input_tokens":8,"output_tokens":12}}}}`)
	if got != (models.Frame{InputTokens: 8, OutputTokens: 12}) {
		t.Fatalf("unexpected final frame %+v", got)
	}

	resp, err := a.ProcessResponse([]byte(`{"generations":[{"text":"Done"}],"meta":{"billed_units":{"input_tokens":1,"output_tokens":2}}}`))
	if err != nil || resp != (models.Frame{Content: "Done", InputTokens: 1, OutputTokens: 2}) {
		t.Fatalf("ProcessResponse() = %+v, %v", resp, err)
	}

	_, err = a.ProcessResponse([]byte(`{"message":"invalid api token"}`))
	var vendorErr *provider.VendorError
	if !errors.As(err, &vendorErr) || vendorErr.Message != "invalid api token" {
		t.Fatalf("expected vendor error, got %v", err)
	}
}
