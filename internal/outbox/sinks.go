package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"civicdesk/internal/config"
	"civicdesk/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

type WebhookSink struct {
	hook   config.Webhook
	filter eventFilter
	client *http.Client
}

func NewWebhookSink(hook config.Webhook) *WebhookSink {
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	return &WebhookSink{
		hook:   hook,
		filter: newEventFilter(hook.Events),
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Accepts(evtType string) bool { return s.filter.match(evtType) }

func (s *WebhookSink) Deliver(ctx context.Context, evt domain.Event) error {
	data, err := envelope(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Civicdesk-Event", evt.Type)
	req.Header.Set("X-Civicdesk-Delivery", strconv.FormatInt(evt.ID, 10))
	if evt.DepartmentID != "" {
		req.Header.Set("X-Civicdesk-Department", evt.DepartmentID)
	}
	if strings.TrimSpace(s.hook.Secret) != "" {
		req.Header.Set("X-Civicdesk-Secret", s.hook.Secret)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every event to one topic, keyed by entity id.
type KafkaSink struct {
	Writer MessageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{Writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Accepts(string) bool { return true }

func (s *KafkaSink) Deliver(ctx context.Context, evt domain.Event) error {
	data, err := envelope(evt)
	if err != nil {
		return err
	}
	key := evt.EntityID
	if key == "" {
		key = evt.EntityKind
	}
	return s.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(evt.ID, 10))},
		},
	})
}

func (s *KafkaSink) Close() error {
	if s.Writer == nil {
		return nil
	}
	return s.Writer.Close()
}

// Close releases sink resources.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, sink := range d.Sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
