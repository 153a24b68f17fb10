package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/crmflow/internal/adapters/mq/queue"
	"github.com/okian/crmflow/internal/adapters/repository"
	"github.com/okian/crmflow/internal/domain/dedupe"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
	"github.com/okian/crmflow/pkg/logger"
	"github.com/okian/crmflow/pkg/metrics"
)

const (
	maxBodyBytes    = 1 << 20
	webhookIDHeader = "X-Webhook-Id"
)

// WebhookHandler ingests webhook deliveries.
type WebhookHandler struct {
	pipeline Normalizer
	deduper  dedupe.Deduper
	queue    Enqueuer
	letters  LetterStore
	now      func() time.Time
	logger   logger.Logger
}

// NewWebhookHandler creates a webhook handler. q and letters may be nil.
func NewWebhookHandler(p Normalizer, d dedupe.Deduper, q Enqueuer, letters LetterStore) *WebhookHandler {
	return &WebhookHandler{
		pipeline: p,
		deduper:  d,
		queue:    q,
		letters:  letters,
		now:      time.Now,
		logger:   logger.Named("api.webhook"),
	}
}

// HandleWebhook handles POST /webhook. The delivery is normalized
// synchronously; the CRM sync happens on the worker pool.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	ctx := r.Context()

	body, payload, err := readPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	key := dedupe.Key(r.Header.Get(webhookIDHeader), body)
	seen, err := h.deduper.SeenAndRecord(ctx, key)
	if err != nil {
		h.logger.Error(ctx, "dedupe lookup failed", logger.String("key", key), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	if seen {
		metrics.RecordWebhookDuplicate()
		h.logger.Debug(ctx, "duplicate delivery", logger.String("key", key))
		writeJSON(w, http.StatusOK, ackResponse{Success: true, Status: "duplicate", Duplicate: true, Key: key})
		return
	}

	start := time.Now()
	n, err := h.pipeline.Normalize(payload)
	metrics.RecordPipelineLatency(float64(time.Since(start).Microseconds()) / 1000)
	if n != nil {
		metrics.RecordWebhookReceived(n.Shape.Name())
	}
	if err != nil {
		h.rollback(ctx, key)
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordValidationFailure()
			h.logger.Warn(ctx, "webhook rejected",
				logger.String("key", key),
				logger.Any("extracted_fields", n.Record.Fields()),
				logger.Error(err))
			h.deadLetter(ctx, r, body, err)
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    "validation_failed",
				Error:   err.Error(),
				Message: "data processing failed",
				Details: verr.Result.Errors,
			})
			return
		}
		h.logger.Error(ctx, "pipeline failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	if !h.pipeline.CatalogHit(n.Record) {
		metrics.RecordCatalogMiss()
		h.logger.Info(ctx, "product not in catalog", logger.String("product_name", n.Record["product_name"]))
	}

	if h.queue == nil {
		// No CRM configured: answer with the normalized result.
		out := h.pipeline.Build(n, true)
		metrics.RecordEventClassified(out.License.EventType.String())
		writeJSON(w, http.StatusOK, model.Succeeded(out, payload))
		return
	}

	d := model.Delivery{
		Key:        key,
		RequestID:  middleware.GetReqID(ctx),
		ReceivedAt: h.now(),
		Payload:    payload,
		Body:       body,
		Headers:    repository.HeaderMap(r.Header),
	}
	if err := h.queue.Enqueue(ctx, d); err != nil {
		h.rollback(ctx, key)
		metrics.RecordQueueEnqueueError()
		switch {
		case errors.Is(err, queue.ErrFull):
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		default:
			h.logger.Error(ctx, "enqueue failed", logger.String("key", key), logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Success: true, Status: "accepted", Key: key})
}

// HandleDryRun handles POST /test: the pipeline runs without touching the
// CRM, the dedupe store or the queue. An empty body runs a sample lead.
func (h *WebhookHandler) HandleDryRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.test"
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	payload := samplePayload()
	if len(bytes.TrimSpace(body)) > 0 {
		if payload, err = decodePayload(body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	res := h.pipeline.Process(payload)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

// rollback forgets key so a sender retry is processed again.
func (h *WebhookHandler) rollback(ctx context.Context, key string) {
	if err := h.deduper.Unrecord(ctx, key); err != nil {
		h.logger.Warn(ctx, "dedupe rollback failed", logger.String("key", key), logger.Error(err))
	}
}

func (h *WebhookHandler) deadLetter(ctx context.Context, r *http.Request, body []byte, cause error) {
	if h.letters == nil {
		return
	}
	name, err := h.letters.Write(context.WithoutCancel(ctx), repository.Letter{
		Timestamp: h.now(),
		Payload:   repository.RawPayload(body),
		Error:     cause.Error(),
		Headers:   repository.HeaderMap(r.Header),
	})
	if err != nil {
		metrics.RecordErrorByComponent("api", "deadletter_error")
		h.logger.Error(ctx, "dead letter write failed", logger.Error(err))
		return
	}
	metrics.RecordDeadLetter("validation")
	h.logger.Info(ctx, "delivery dead-lettered", logger.String("name", name))
}

var errNotObject = errors.New("body must be a JSON object")

// readPayload reads the raw body and decodes it as a JSON object.
func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, model.Payload, error) {
	body, err := readBody(w, r)
	if err != nil {
		return nil, nil, err
	}
	payload, err := decodePayload(body)
	if err != nil {
		return nil, nil, err
	}
	return body, payload, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func decodePayload(body []byte) (model.Payload, error) {
	var payload model.Payload
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return nil, errNotObject
	}
	return payload, nil
}

// samplePayload is the lead a dry run processes when no body is sent.
func samplePayload() model.Payload {
	return model.Payload{
		"name":    "Test User",
		"email":   "test@example.com",
		"phone":   "+1234567890",
		"message": "This is a test message",
		"company": "Test Company",
		"source":  "Manual Test",
	}
}
