package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Ticker runs one scheduling pass. Implemented by Worker.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Timer fires scheduling ticks at a fixed interval. A fire does not wait for
// the previous tick; overlapping ticks are safe because the status column is
// the write lock on each row. The in-flight count is bounded so a wedged
// tick cannot pile up goroutines forever.
type Timer struct {
	worker   Ticker
	interval time.Duration
	maxTicks int

	mu       sync.Mutex
	inflight map[int64]struct{}
	wg       sync.WaitGroup
	nextID   int64
}

func NewTimer(worker Ticker, interval time.Duration, maxTicks int) *Timer {
	return &Timer{
		worker:   worker,
		interval: interval,
		maxTicks: maxTicks,
		inflight: make(map[int64]struct{}),
	}
}

// Run fires ticks until ctx is cancelled, then joins every outstanding tick
// before returning. Nothing is left running after Run returns.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Int("max_concurrent", t.maxTicks).Msg("dispatch timer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("dispatch timer stopping, joining in-flight ticks")
			t.wg.Wait()
			return
		case <-ticker.C:
			t.fire(ctx)
		}
	}
}

func (t *Timer) fire(ctx context.Context) {
	t.mu.Lock()
	if len(t.inflight) >= t.maxTicks {
		t.mu.Unlock()
		log.Warn().Int("inflight", t.maxTicks).Msg("skipping tick, too many in flight")
		return
	}
	t.nextID++
	id := t.nextID
	t.inflight[id] = struct{}{}
	t.mu.Unlock()

	// Cancelling Run stops new ticks but must not abort one mid-flight: a
	// distribution caught between status writes would wedge its job, so the
	// tick keeps ctx's values without its cancellation.
	tickCtx := context.WithoutCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.inflight, id)
			t.mu.Unlock()
		}()

		start := time.Now()
		if err := t.worker.Tick(tickCtx); err != nil {
			log.Error().Err(err).Int64("tick", id).Msg("tick failed")
			return
		}
		log.Debug().Int64("tick", id).Dur("took", time.Since(start)).Msg("tick complete")
	}()
}
