package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/hooklens/pkg/logger"
	"github.com/okian/hooklens/pkg/metrics"
)

// Batch defaults.
const (
	DefaultBatchCap = 2048
	DefaultMaxChars = 2000
	DefaultThrottle = 200 * time.Millisecond
	// DefaultRetries is how many times a transient provider failure is retried.
	DefaultRetries   = 2
	DefaultRetryBase = 500 * time.Millisecond
)

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder)

// WithBatchCap sets the most texts sent in one provider call.
func WithBatchCap(n int) Option {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.batchCap = n
		}
	}
}

// WithMaxChars sets the per-text character limit applied before submission.
func WithMaxChars(n int) Option {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.maxChars = n
		}
	}
}

// WithThrottle sets the pause between consecutive provider calls. Zero disables it.
func WithThrottle(d time.Duration) Option {
	return func(b *BatchEmbedder) {
		if d >= 0 {
			b.throttle = d
		}
	}
}

// WithRetries sets how many times a call failing with ErrTransient is
// retried. Zero disables retries.
func WithRetries(n int) Option {
	return func(b *BatchEmbedder) {
		if n >= 0 {
			b.retries = n
		}
	}
}

// WithRetryBase sets the first backoff delay; later delays grow exponentially.
func WithRetryBase(d time.Duration) Option {
	return func(b *BatchEmbedder) {
		if d > 0 {
			b.retryBase = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *BatchEmbedder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics sets the metrics manager. Defaults to the global one.
func WithMetrics(m *metrics.Manager) Option {
	return func(b *BatchEmbedder) {
		if m != nil {
			b.metrics = m
		}
	}
}

// BatchEmbedder embeds arbitrarily many texts through a Provider, keeping
// input order and never failing as a whole.
type BatchEmbedder struct {
	provider Provider
	batchCap int
	maxChars int
	throttle time.Duration
	log      logger.Logger
	metrics  *metrics.Manager

	retries   int
	retryBase time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewBatchEmbedder wraps provider.
func NewBatchEmbedder(provider Provider, opts ...Option) *BatchEmbedder {
	b := &BatchEmbedder{
		provider:  provider,
		batchCap:  DefaultBatchCap,
		maxChars:  DefaultMaxChars,
		throttle:  DefaultThrottle,
		log:       logger.Nop(),
		metrics:   metrics.Global(),
		retries:   DefaultRetries,
		retryBase: DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Embed returns one slot per text, in input order. A slot is nil when the
// provider call covering it failed or the response had no entry for it.
// Cancellation of ctx stops further provider calls and leaves their slots nil.
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = Truncate(t, b.maxChars)
	}

	for start := 0; start < len(prepared); start += b.batchCap {
		if !b.wait(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		end := min(start+b.batchCap, len(prepared))
		b.call(ctx, prepared[start:end], out[start:end])
	}

	missing := 0
	for _, v := range out {
		if v == nil {
			missing++
		}
	}
	b.metrics.RecordEmbeddingMissing(missing)
	return out
}

// call fills slots from one provider request, retrying transient failures
// with exponential backoff. slots aliases the caller's output window so
// indexes in the response are relative to chunk.
func (b *BatchEmbedder) call(ctx context.Context, chunk []string, slots [][]float32) {
	var res []Embedding
	backoff := retry.WithMaxRetries(uint64(b.retries), retry.NewExponential(b.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		start := time.Now()
		var err error
		res, err = b.provider.Embed(ctx, chunk)
		latency := float64(time.Since(start).Milliseconds())
		if err != nil {
			b.metrics.RecordEmbeddingRequest(metrics.OutcomeError, len(chunk), latency)
			if errors.Is(err, ErrTransient) {
				b.log.Debug(ctx, "transient embedding failure", logger.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		b.metrics.RecordEmbeddingRequest(metrics.OutcomeOK, len(chunk), latency)
		return nil
	})
	if err != nil {
		b.metrics.RecordError("embedding", "provider")
		b.log.Warn(ctx, "embedding call failed, batch routed to rules",
			logger.String("provider", b.provider.Name()),
			logger.Int("texts", len(chunk)),
			logger.Error(err))
		return
	}

	for _, e := range res {
		if e.Index < 0 || e.Index >= len(slots) || len(e.Vector) == 0 {
			continue
		}
		slots[e.Index] = e.Vector
	}
}

// wait blocks until throttle has passed since the previous provider call,
// across Embed calls, and reserves the next slot. It returns false if ctx
// ends first.
func (b *BatchEmbedder) wait(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.throttle > 0 && !b.lastCall.IsZero() {
		if d := b.throttle - time.Since(b.lastCall); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return false
			case <-t.C:
			}
		}
	}
	if ctx.Err() != nil {
		return false
	}
	b.lastCall = time.Now()
	return true
}

// Truncate cuts s to at most maxChars characters without splitting a
// multi-byte rune. maxChars <= 0 disables truncation.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

