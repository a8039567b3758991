package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
)

// Executor — путь исполнения бизнес-эффекта, поставляемый вызывающей стороной.
// Подсистема решает, ПРОПУСКАТЬ ли действие, но никогда — что оно делает:
// AUTO_EXECUTED действия доставляются сюда, эффект целиком на исполнителе.
type Executor interface {
	Execute(ctx context.Context, action *domain.Action) error
}

// WebhookExecutor доставляет действие внешнему исполнителю по HTTP.
type WebhookExecutor struct {
	url    string
	client *http.Client
}

func NewWebhookExecutor(url string, timeout time.Duration) *WebhookExecutor {
	return &WebhookExecutor{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookExecutor) Execute(ctx context.Context, action *domain.Action) error {
	body, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("dispatch: marshal action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Action-ID", action.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: executor unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // даем клиенту переиспользовать соединение

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("executor returned 429"),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("dispatch: executor error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// 4xx кроме 429 — невосстановимо, ретраить бессмысленно
		return fmt.Errorf("dispatch: executor rejected action: status %d", resp.StatusCode)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 2 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}
