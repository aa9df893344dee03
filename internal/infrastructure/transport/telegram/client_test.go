package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token", "back", nil, nil)
}

func TestRenderChoicesBuildsOneButtonPerRowPlusBack(t *testing.T) {
	var captured sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	})

	choices := []ports.Choice{
		{Label: "Fiction", Token: "c:1"},
		{Label: "Science", Token: "c:2"},
	}
	if err := client.RenderChoices(context.Background(), "42", "pick one", choices, true); err != nil {
		t.Fatalf("RenderChoices() error = %v", err)
	}

	if captured.ChatID != "42" || captured.Text != "pick one" {
		t.Fatalf("unexpected message: %+v", captured)
	}
	rows := captured.ReplyMarkup.InlineKeyboard
	if len(rows) != 3 {
		t.Fatalf("expected 2 choice rows plus back, got %d", len(rows))
	}
	if rows[0][0].Text != "Fiction" || rows[0][0].CallbackData != "c:1" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[2][0].CallbackData != "back" {
		t.Fatalf("expected back row last, got %+v", rows[2])
	}
}

func TestRenderChoicesOmitsBackAtRoot(t *testing.T) {
	var captured sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	})

	if err := client.RenderChoices(context.Background(), "42", "pick", []ports.Choice{{Label: "A", Token: "c:1"}}, false); err != nil {
		t.Fatalf("RenderChoices() error = %v", err)
	}
	if len(captured.ReplyMarkup.InlineKeyboard) != 1 {
		t.Fatalf("root menu must have no back row: %+v", captured.ReplyMarkup.InlineKeyboard)
	}
}

func TestSendWrapsFloodControlAsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  429,
			"description": "Too Many Requests",
			"parameters":  map[string]any{"retry_after": 5},
		})
	})

	err := client.SendNotice(context.Background(), "42", "hi")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrap for flood control, got %v", err)
	}
}

func TestSendSurfacesClientErrorUnwrapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: chat not found",
		})
	})

	err := client.SendNotice(context.Background(), "42", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("4xx must not be classified temporary: %v", err)
	}
	var api *apiError
	if !errors.As(err, &api) || api.code != 400 {
		t.Fatalf("expected api error with code 400, got %v", err)
	}
}

func TestGetUpdatesDecodesEnvelopeResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req getUpdatesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Offset != 7 {
			t.Errorf("expected offset 7, got %d", req.Offset)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 8,
					"message": map[string]any{
						"message_id": 1,
						"chat":       map[string]any{"id": 42},
						"text":       "/start",
					},
				},
			},
		})
	})

	updates, err := client.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 1 || updates[0].UpdateID != 8 || updates[0].Message.Text != "/start" {
		t.Fatalf("unexpected updates: %+v", updates)
	}
}

func TestClassifySendErrorRetriesOnlyTransient(t *testing.T) {
	transient := &apiError{method: "sendMessage", code: 502}
	if c := classifySendError(transient); !c.Retryable || !c.RecordFailure {
		t.Fatalf("5xx should be retryable and recorded: %+v", c)
	}

	permanent := &apiError{method: "sendMessage", code: 403}
	if c := classifySendError(permanent); c.Retryable {
		t.Fatalf("4xx must not be retried: %+v", c)
	}

	if c := classifySendError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded: %+v", c)
	}
}

func TestClassifyDeliverErrorNeverRetries(t *testing.T) {
	for _, err := range []error{
		&apiError{method: "sendDocument", code: 502},
		&apiError{method: "sendDocument", code: 429},
		errors.New("connection reset"),
	} {
		if c := classifyDeliverError(err); c.Retryable {
			t.Fatalf("document dispatch must get exactly one attempt, got %+v for %v", c, err)
		}
	}
}
