package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/efreitasn/bidengine/internal/domain"
	"github.com/efreitasn/bidengine/internal/store"
)

// Payload encodings for outbound webhooks.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

var participantIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

var validWebhookEvents = func() map[domain.EventType]bool {
	m := make(map[domain.EventType]bool, len(domain.EventTypes))
	for _, e := range domain.EventTypes {
		m[e] = true
	}
	return m
}()

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	SubscriberID string
	URL          string
	Events       []string
}

// WebhookService handles webhook CRUD and delivers domain events to
// subscribed recipients. It implements engine.Emitter.
type WebhookService struct {
	store    *store.WebhookStore
	client   *http.Client
	encoding string
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// NewWebhookService creates a new WebhookService. encoding is EncodingJSON
// or EncodingCBOR.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	webhookTimeout time.Duration,
	encoding string,
	logger *slog.Logger,
) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		encoding: encoding,
		logger:   logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !participantIDRegex.MatchString(req.SubscriberID) {
		return nil, false, &domain.ValidationError{Message: "subscriber_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}

	// Validate URL.
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.EventType]bool, len(req.Events))
	events := make([]domain.EventType, 0, len(req.Events))
	for _, raw := range req.Events {
		event := domain.EventType(raw)
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: fmt.Sprintf("Unknown event type: %s. Must be one of: %s", raw, eventTypeList()),
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		w := &domain.Webhook{
			WebhookID:    uuid.New().String(),
			SubscriberID: req.SubscriberID,
			Event:        event,
			URL:          req.URL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
			continue
		}
		if existing := s.store.Lookup(req.SubscriberID, event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions of a subscriber.
func (s *WebhookService) List(subscriberID string) ([]*domain.Webhook, error) {
	if !participantIDRegex.MatchString(subscriberID) {
		return nil, &domain.ValidationError{Message: "subscriber_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return s.store.ListBySubscriber(subscriberID), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// eventPayload is the body of every webhook delivery.
type eventPayload struct {
	Event     domain.EventType `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      domain.Event     `json:"data"`
}

// Emit delivers the event to every recipient subscribed to its type.
// Delivery is fire-and-forget.
func (s *WebhookService) Emit(_ context.Context, event domain.Event) {
	payload := eventPayload{
		Event:     event.Type(),
		Timestamp: event.At().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      event,
	}

	for _, recipient := range event.Recipients() {
		wh := s.store.Lookup(recipient, event.Type())
		if wh == nil {
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.deliver(wh, payload)
		}()
	}
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookService) Wait() {
	s.inflight.Wait()
}

func (s *WebhookService) encode(payload eventPayload) ([]byte, string, error) {
	if s.encoding == EncodingCBOR {
		body, err := cbor.Marshal(payload)
		return body, "application/cbor", err
	}
	body, err := json.Marshal(payload)
	return body, "application/json", err
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged and dropped.
func (s *WebhookService) deliver(wh *domain.Webhook, payload eventPayload) {
	body, contentType, err := s.encode(payload)
	if err != nil {
		s.logger.Error("encode webhook payload", "webhook_id", wh.WebhookID, "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", string(payload.Event))

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed", "webhook_id", wh.WebhookID, "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook rejected", "webhook_id", wh.WebhookID, "status", resp.StatusCode)
	}
}

func eventTypeList() string {
	names := make([]string, len(domain.EventTypes))
	for i, e := range domain.EventTypes {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
