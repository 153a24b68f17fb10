package webhookgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crmflow/pkg/logger"
)

// Sender posts webhooks to the service.
type Sender struct {
	client *http.Client
	url    string
	log    logger.Logger
}

// NewSender returns a sender posting to baseURL+path.
func NewSender(baseURL, path string, timeout time.Duration) *Sender {
	if path == "" {
		path = defaultPath
	}
	return &Sender{
		client: &http.Client{Timeout: timeout},
		url:    baseURL + path,
		log:    logger.Named("webhookgen.sender"),
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Send posts one webhook and classifies the answer.
func (s *Sender) Send(ctx context.Context, w Webhook) (string, error) {
	body, err := json.Marshal(w.Body)
	if err != nil {
		return outcomeFailed, fmt.Errorf("marshal webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return outcomeFailed, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookIDHeader, w.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return outcomeFailed, fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.log.Debug(ctx, "failed to close response body", logger.Error(err))
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted, nil
	case http.StatusOK:
		var ack ackResponse
		if err := json.Unmarshal(data, &ack); err == nil && ack.Duplicate {
			return outcomeDuplicate, nil
		}
		return outcomeAccepted, nil
	case http.StatusBadRequest:
		return outcomeRejected, nil
	case http.StatusTooManyRequests:
		return outcomeBackpressed, nil
	default:
		return outcomeFailed, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// SendAll posts webhooks from a pool of workers and tallies the outcomes
// into stats.
func (s *Sender) SendAll(ctx context.Context, hooks []Webhook, workers int, stats *Stats) {
	if workers < 1 {
		workers = 1
	}
	s.log.Info(ctx, "submitting webhooks",
		logger.Int("webhooks", len(hooks)),
		logger.Int("workers", workers))

	var submitted, accepted, duplicate, rejected, backpressed, failed atomic.Int64

	hookChan := make(chan Webhook, workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range hookChan {
				outcome, err := s.Send(ctx, w)
				if err != nil {
					s.log.Debug(ctx, "webhook failed", logger.String("id", w.ID), logger.Error(err))
				}
				submitted.Add(1)
				switch outcome {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				case outcomeBackpressed:
					backpressed.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(hookChan)
		for _, w := range hooks {
			select {
			case <-ctx.Done():
				return
			case hookChan <- w:
			}
		}
	}()

	wg.Wait()

	stats.Submitted += int(submitted.Load())
	stats.Accepted += int(accepted.Load())
	stats.Duplicate += int(duplicate.Load())
	stats.Rejected += int(rejected.Load())
	stats.Backpressed += int(backpressed.Load())
	stats.Failed += int(failed.Load())
}

// withDuplicates appends redeliveries of every n-th webhook so that about
// rate of the originals are sent twice.
func withDuplicates(hooks []Webhook, rate float64) []Webhook {
	if rate <= 0 || len(hooks) == 0 {
		return hooks
	}
	if rate > 1 {
		rate = 1
	}
	step := int(math.Round(1 / rate))
	out := make([]Webhook, len(hooks), len(hooks)+len(hooks)/step+1)
	copy(out, hooks)
	for i := 0; i < len(hooks); i += step {
		out = append(out, hooks[i])
	}
	return out
}
