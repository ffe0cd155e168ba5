package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/notify"
	"github.com/quillscribe/portal/internal/repository"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "contact-notifiers"

	// DefaultBatchSize is the max messages per batch.
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 2 * time.Minute

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 10 * time.Second

	maxErrorLength = 500
)

// Store is the contact message persistence used by the worker.
type Store interface {
	GetContactMessage(ctx context.Context, id string) (*model.ContactMessage, error)
	MarkContactDelivered(ctx context.Context, id string, attempts int, at time.Time) error
	MarkContactFailed(ctx context.Context, id string, attempts int, lastError string) error
}

// Worker delivers contact messages from the Redis stream to notifiers.
type Worker struct {
	redis           *redis.Client
	store           Store
	notifiers       []notify.Notifier
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	maxAttempts     int
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time
	retryDelay      func(attempt int) time.Duration
	now             func() time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a contact delivery worker.
func NewWorker(client *redis.Client, store Store, notifiers []notify.Notifier, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		redis:           client,
		store:           store,
		notifiers:       notifiers,
		logger:          logger.With("component", "outbox.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxAttempts:     notify.DefaultMaxAttempts,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
		retryDelay:      notify.NextRetryDelay,
		now:             time.Now,
	}
}

// NewConsumerID creates a stable-ish consumer ID for Redis consumer groups.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "notifier"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("contact worker started", slog.Int("notifiers", len(w.notifiers)))

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("contact worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("contact worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", slog.String("error", err.Error()))
				if !sleepContext(ctx, time.Second) {
					return nil
				}
			}
		}
	}
}

// Shutdown stops the worker after the in-flight batch.
// It implements server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("contact worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("contact worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("contact worker shutdown timed out")
		return ctx.Err()
	}
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and delivers a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", slog.String("error", err.Error()))
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	w.metrics.ObserveContactBatchSize(len(messages))

	ackIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		if w.handle(ctx, msg) {
			ackIDs = append(ackIDs, msg.ID)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return w.ackMessages(ctx, ackIDs)
}

// handle processes one stream entry and reports whether it can be acked.
// Store errors leave the entry pending so it is claimed again later.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) bool {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		w.deadLetterMessage(ctx, msg, "invalid_format", "payload field missing or not a string")
		return true
	}

	var payload ContactPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		w.deadLetterMessage(ctx, msg, "unmarshal_error", err.Error())
		return true
	}
	if payload.MessageID == "" {
		w.deadLetterMessage(ctx, msg, "validation_error", "mid is required")
		return true
	}

	contact, err := w.store.GetContactMessage(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			w.deadLetterMessage(ctx, msg, "not_found", "contact message does not exist")
			return true
		}
		w.logger.Error("failed to load contact message",
			slog.String("message_id", payload.MessageID),
			slog.String("error", err.Error()),
		)
		return false
	}

	// Redelivered after a crash between delivery and ack.
	if contact.Status != model.ContactStatusPending {
		return true
	}

	attempts, deliverErr := w.deliver(ctx, contact)
	if errors.Is(deliverErr, context.Canceled) {
		return false
	}

	if deliverErr != nil {
		w.metrics.IncContactProcessed("failed")
		w.logger.Warn("contact delivery failed",
			slog.String("message_id", contact.ID),
			slog.Int("attempts", attempts),
			slog.String("error", deliverErr.Error()),
		)
		if err := w.store.MarkContactFailed(ctx, contact.ID, attempts, truncate(deliverErr.Error(), maxErrorLength)); err != nil {
			w.logger.Error("failed to mark contact failed", slog.String("message_id", contact.ID), slog.String("error", err.Error()))
			return false
		}
		return true
	}

	w.metrics.IncContactProcessed("delivered")
	if err := w.store.MarkContactDelivered(ctx, contact.ID, attempts, w.now().UTC()); err != nil {
		w.logger.Error("failed to mark contact delivered", slog.String("message_id", contact.ID), slog.String("error", err.Error()))
		return false
	}
	w.logger.Info("contact message delivered",
		slog.String("message_id", contact.ID),
		slog.Int("attempts", attempts),
	)
	return true
}

// deliver sends contact to every notifier, retrying the ones that failed with
// exponential backoff. It returns the number of attempts used.
func (w *Worker) deliver(ctx context.Context, contact *model.ContactMessage) (int, error) {
	pending := w.notifiers
	var lastErr error

	for attempt := 1; ; attempt++ {
		var failed []notify.Notifier
		var errs []error
		for _, n := range pending {
			err := n.Notify(ctx, contact)
			if err == nil {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return attempt, err
			}
			if notify.IsPermanent(err) {
				return attempt, fmt.Errorf("%s: %w", n.Name(), err)
			}
			failed = append(failed, n)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}

		if len(failed) == 0 {
			return attempt, nil
		}
		lastErr = errors.Join(errs...)

		if notify.IsExhausted(attempt, w.maxAttempts) {
			return attempt, lastErr
		}

		backoff := w.retryDelay(attempt - 1)
		w.metrics.IncContactProcessed("retried")
		w.logger.Warn("contact delivery failed, retrying",
			slog.String("message_id", contact.ID),
			slog.Int("attempt", attempt),
			slog.Float64("backoff_seconds", backoff.Seconds()),
			slog.String("error", lastErr.Error()),
		)
		if !sleepContext(ctx, backoff) {
			return attempt, ctx.Err()
		}
		pending = failed
	}
}

// maybeClaimPending reclaims messages left pending by crashed consumers.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", slog.String("error", err.Error()))
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetContactQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetMaxAttempts overrides the default delivery attempts per message.
func (w *Worker) SetMaxAttempts(n int) {
	if n > 0 {
		w.maxAttempts = n
	}
}

// SetClaimInterval overrides the pending-claim interval. Zero disables claiming.
func (w *Worker) SetClaimInterval(interval time.Duration) {
	if interval >= 0 {
		w.claimInterval = interval
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetMetricsInterval overrides the queue depth interval. Zero disables it.
func (w *Worker) SetMetricsInterval(interval time.Duration) {
	if interval >= 0 {
		w.metricsInterval = interval
	}
}

// readBatch reads new messages using XREADGROUP.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) || (err == nil && len(streams) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// deadLetterMessage moves a poison message to the dead-letter stream.
func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering poison message",
		slog.String("stream_id", msg.ID),
		slog.String("reason", reason),
		slog.String("detail", detail),
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": w.now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			slog.String("stream_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}

	w.metrics.IncContactProcessed("dead_lettered")
}

// ackMessages acknowledges processed messages.
func (w *Worker) ackMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// Ack even when the batch context was cancelled so finished work is not redone.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := w.redis.XAck(ackCtx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
