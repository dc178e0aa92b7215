// Package webhook delivers signed run notifications.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>" when a secret is set.
const SignatureHeader = "X-Lmstrack-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Notifier posts events to one endpoint.
type Notifier struct {
	url    string
	secret string
	client *resty.Client
	delays []time.Duration
	wg     sync.WaitGroup
}

// New creates a Notifier for url. secret may be empty.
func New(url, secret string) *Notifier {
	client := resty.New()
	client.SetHeader("User-Agent", "Lmstrack-Webhook/1.0")
	client.SetTimeout(10 * time.Second)

	return &Notifier{
		url:    url,
		secret: secret,
		client: client,
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends an event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if n.secret != "" {
		req.SetHeader(SignatureHeader, Sign(n.secret, body))
	}

	res, err := req.Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if res.StatusCode() >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", res.StatusCode())
	}
	return nil
}

// DeliverAsync sends an event in the background, retrying after 1s, 5s and 30s.
func (n *Notifier) DeliverAsync(event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}

// Notify builds an event stamped with the current time and delivers it asynchronously.
func (n *Notifier) Notify(eventType, runID string, data any) {
	n.DeliverAsync(&Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

// Wait blocks until every pending delivery has finished or given up.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
