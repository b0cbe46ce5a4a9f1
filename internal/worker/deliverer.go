package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"notify24/config"
	"notify24/internal/middleware"
	"notify24/internal/queue"

	"github.com/google/uuid"
)

// Deliverer performs one per-recipient delivery call.
type Deliverer interface {
	Deliver(ctx context.Context, msg queue.DispatchMessage, recipientID uuid.UUID) error
}

// HTTPDeliverer calls the API's internal delivery endpoint with the shared
// internal key. The API owns the state transition and the websocket fan-out;
// the worker only drives it.
type HTTPDeliverer struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewHTTPDeliverer(cfg *config.Config) *HTTPDeliverer {
	return &HTTPDeliverer{
		baseURL: cfg.Worker.APIBaseURL,
		key:     cfg.Internal.Key,
		client:  &http.Client{Timeout: cfg.Worker.DeliveryTimeout},
	}
}

type deliverPayload struct {
	NotificationID  uuid.UUID `json:"notification_id"`
	RecipientUserID uuid.UUID `json:"recipient_user_id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, msg queue.DispatchMessage, recipientID uuid.UUID) error {
	body, err := json.Marshal(deliverPayload{
		NotificationID:  msg.NotificationID,
		RecipientUserID: recipientID,
		Title:           msg.Title,
		Body:            msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/v1/notifications/internal/deliver", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.InternalKeyHeader, d.key)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery call for %s: %w", recipientID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery call for %s failed: status=%d body=%s", recipientID, resp.StatusCode, snippet)
	}
	return nil
}
