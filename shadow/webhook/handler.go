package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/sync/semaphore"

	"github.com/byte4ever/shadowsync/shadow/config"
)

const (
	// DefaultMaxBodySize bounds accepted payloads when
	// HandlerConfig.MaxBodySize is zero. GitHub caps
	// deliveries at 25 MB.
	DefaultMaxBodySize = 32 << 20

	// dedupWindow is how long delivery IDs are
	// remembered.
	dedupWindow = time.Hour

	// DefaultMaxConcurrent bounds concurrent passes
	// when HandlerConfig.MaxConcurrent is zero.
	DefaultMaxConcurrent = 4
)

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Secret verifies X-Hub-Signature-256. Required.
	Secret []byte

	// Dispatch routes event kinds.
	Dispatch Dispatch

	// MaxConcurrent bounds the passes running at once.
	MaxConcurrent int64

	// MaxBodySize bounds accepted payloads in bytes.
	MaxBodySize int64
}

// Handler is the webhook endpoint.
type Handler struct {
	base     context.Context
	secret   []byte
	maxBody  int64
	dispatch Dispatch
	sem      *semaphore.Weighted
	wg       sync.WaitGroup

	mu         sync.Mutex
	deliveries map[string]time.Time
	now        func() time.Time
}

// NewHandler returns a Handler running its passes under
// base. Cancelling base aborts running passes.
func NewHandler(
	base context.Context,
	cfg HandlerConfig,
) (*Handler, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf(
			"%w: creating webhook handler: secret must be set",
			config.ErrConfig,
		)
	}

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	return &Handler{
		base:       base,
		secret:     cfg.Secret,
		maxBody:    maxBody,
		dispatch:   cfg.Dispatch,
		sem:        semaphore.NewWeighted(limit),
		deliveries: make(map[string]time.Time),
		now:        time.Now,
	}, nil
}

// ServeHTTP verifies, deduplicates and routes one
// delivery. Accepted passes answer 202; ignored
// deliveries answer 200 so the sender does not retry.
// A delivery ID is remembered only once its payload
// parsed.
func (h *Handler) ServeHTTP(
	w http.ResponseWriter,
	r *http.Request,
) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn(
				"webhook payload too large",
				"remote_addr", r.RemoteAddr,
				"limit", tooLarge.Limit,
			)
			http.Error(w, "", http.StatusRequestEntityTooLarge)

			return
		}

		slog.Warn(
			"webhook signature rejected",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		http.Error(w, "", http.StatusUnauthorized)

		return
	}

	kind := github.WebHookType(r)
	delivery := github.DeliveryID(r)

	if kind == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)

		return
	}

	route, ok := h.dispatch[kind]
	if !ok {
		slog.Debug(
			"event ignored",
			"delivery", delivery,
			"event", kind,
		)
		w.WriteHeader(http.StatusOK)

		return
	}

	parsed, err := github.ParseWebHook(kind, payload)
	if err != nil {
		slog.Error(
			"cannot parse webhook payload",
			"delivery", delivery,
			"event", kind,
			"error", err,
		)
		http.Error(w, "invalid payload", http.StatusBadRequest)

		return
	}

	if delivery != "" && h.seen(delivery) {
		slog.Debug(
			"duplicate delivery ignored",
			"delivery", delivery,
			"event", kind,
		)
		w.WriteHeader(http.StatusOK)

		return
	}

	job := route(parsed)
	if job == nil {
		slog.Debug(
			"event action ignored",
			"delivery", delivery,
			"event", kind,
		)
		w.WriteHeader(http.StatusOK)

		return
	}

	slog.Info(
		"webhook accepted",
		"delivery", delivery,
		"event", kind,
	)

	h.run(kind, delivery, job)
	w.WriteHeader(http.StatusAccepted)
}

// Wait blocks until every started pass has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) run(kind, delivery string, job Job) {
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()

		if err := h.sem.Acquire(h.base, 1); err != nil {
			slog.Warn(
				"pass dropped",
				"delivery", delivery,
				"event", kind,
				"error", err,
			)

			return
		}

		defer h.sem.Release(1)

		job(h.base)
	}()
}

// seen records delivery and reports whether it was
// already recorded within dedupWindow.
func (h *Handler) seen(delivery string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()

	for id, at := range h.deliveries {
		if now.Sub(at) > dedupWindow {
			delete(h.deliveries, id)
		}
	}

	if _, ok := h.deliveries[delivery]; ok {
		return true
	}

	h.deliveries[delivery] = now

	return false
}
