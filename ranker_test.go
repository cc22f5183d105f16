package ranker

import (
	"context"
	"testing"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

type staticAdapter struct {
	caps core.Capabilities
}

func (s *staticAdapter) Dispatch(ctx context.Context, req core.Request, variant core.ToolVariant) (*core.RawResponse, error) {
	return &core.RawResponse{Text: "ok", ModelVersion: "static-1"}, nil
}

func (s *staticAdapter) Capabilities() core.Capabilities { return s.caps }

func TestNewClientWithExplicitAdapter(t *testing.T) {
	client := NewClient(
		WithAdapter("static", &staticAdapter{caps: core.Capabilities{Provider: "static"}}),
		WithALSSecret([]byte("test-secret")),
	)

	providers := client.Providers()
	found := false
	for _, name := range providers {
		if name == "static" {
			found = true
		}
	}
	if !found {
		t.Fatalf("explicit adapter missing from %v", providers)
	}

	resp, err := client.Complete(context.Background(), core.Request{
		ProviderID: "static",
		Messages:   []core.Message{core.UserMessage("hello")},
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Text != "ok" || resp.Model != "static-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCompleteUnknownProvider(t *testing.T) {
	client := NewClient()
	_, err := client.Complete(context.Background(), core.Request{
		ProviderID: "nope",
		Messages:   []core.Message{core.UserMessage("hello")},
	})
	if !core.IsBadRequest(err) {
		t.Fatalf("expected bad_request for unknown provider, got %v", err)
	}
}
