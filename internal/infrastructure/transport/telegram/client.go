package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
	"github.com/bekzodov/kutubxona-bot/internal/core/ports"
	"github.com/bekzodov/kutubxona-bot/internal/infrastructure/resilience"
	"github.com/bekzodov/kutubxona-bot/internal/observability/metrics"
)

// backLabel is the visible text of the back button issued with non-root
// menus; the core matches the echoed token, not this label.
const backLabel = "⬅️ Back"

// apiError is a non-OK Bot API response.
type apiError struct {
	method      string
	code        int
	description string
	retryAfter  int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.method, e.code, e.description)
}

// Client talks to the Telegram Bot API. It implements ports.Transport plus
// the update-fetching side consumed by the Poller. Menu renders and notices
// go through the resilience executor; document sends are classified
// non-retryable so the delivery pacer's one-attempt rule holds end to end.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	pollClient *http.Client
	executor   *resilience.Executor
	metrics    *metrics.BotMetrics
	backToken  string
}

var _ ports.Transport = (*Client)(nil)

func NewClient(baseURL, token, backToken string, executor *resilience.Executor, botMetrics *metrics.BotMetrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// Long-poll requests outlive the regular timeout by design.
		pollClient: &http.Client{Timeout: 90 * time.Second},
		executor:   executor,
		metrics:    botMetrics,
		backToken:  backToken,
	}
}

func (c *Client) RenderChoices(ctx context.Context, identity, prompt string, choices []ports.Choice, backOption bool) error {
	keyboard := make([][]inlineKeyboardButton, 0, len(choices)+1)
	for _, choice := range choices {
		keyboard = append(keyboard, []inlineKeyboardButton{{Text: choice.Label, CallbackData: choice.Token}})
	}
	if backOption {
		keyboard = append(keyboard, []inlineKeyboardButton{{Text: backLabel, CallbackData: c.backToken}})
	}

	req := sendMessageRequest{
		ChatID:      identity,
		Text:        prompt,
		ReplyMarkup: &inlineKeyboardMarkup{InlineKeyboard: keyboard},
	}
	return c.send(ctx, "sendMessage", req, classifySendError)
}

func (c *Client) SendNotice(ctx context.Context, identity, text string) error {
	return c.send(ctx, "sendMessage", sendMessageRequest{ChatID: identity, Text: text}, classifySendError)
}

func (c *Client) SendDocument(ctx context.Context, identity, contentRef, caption string) error {
	req := sendDocumentRequest{ChatID: identity, Document: contentRef, Caption: caption}
	return c.send(ctx, "sendDocument", req, classifyDeliverError)
}

// AnswerCallback stops the client-side spinner after a menu tap. Best-effort.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.send(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID}, classifyDeliverError)
}

// GetUpdates long-polls for the next batch of updates.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message", "callback_query"},
	}

	var updates []Update
	if err := c.call(ctx, c.pollClient, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) send(ctx context.Context, method string, payload any, classifier resilience.ErrorClassifier) error {
	call := func(ctx context.Context) error {
		return c.call(ctx, c.httpClient, method, payload, nil)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "telegram."+method, call, classifier)
	} else {
		err = call(ctx)
	}
	if c.metrics != nil {
		c.metrics.ObserveSend(method, err)
	}
	return wrapTemporaryIfNeeded(method, err)
}

func (c *Client) call(ctx context.Context, httpClient *http.Client, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		apiErr := &apiError{method: method, code: envelope.ErrorCode, description: envelope.Description}
		if envelope.Parameters != nil {
			apiErr.retryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// isTransient reports whether the failure is worth another attempt later:
// network trouble, flood control (429) or a server-side 5xx.
func isTransient(err error) bool {
	var api *apiError
	if errors.As(err, &api) {
		return api.code == http.StatusTooManyRequests || api.code >= 500
	}
	// Non-API failures here are connectivity or read errors.
	return !errors.Is(err, context.Canceled)
}

func classifySendError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{
		Retryable:     isTransient(err),
		RecordFailure: true,
	}
}

// classifyDeliverError never retries: document dispatches and callback
// answers get exactly one attempt per pass.
func classifyDeliverError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(method string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if isTransient(err) || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "telegram "+method, err)
	}
	return err
}
