package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/provider"
)

// PollerConfig tunes the delivery status poll loop.
type PollerConfig struct {
	Interval    time.Duration
	Batch       int
	CallTimeout time.Duration
}

// Poller periodically polls the courier provider for every in-flight
// dispatched delivery and feeds the normalized result into the state
// machine. Polls run concurrently per delivery; a delivery whose previous
// poll is still in flight is skipped, never queued twice.
type Poller struct {
	deliveries deliveryStore
	creds      credentialStore
	couriers   map[string]provider.CourierSource
	events     normalizer
	dispatch   machine
	logger     logx.Logger
	failures   counter

	cfg PollerConfig
	now func() time.Time

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a Poller.
func NewPoller(
	deliveries deliveryStore,
	creds credentialStore,
	couriers []provider.CourierSource,
	events normalizer,
	dispatch machine,
	logger logx.Logger,
	failures counter,
	cfg PollerConfig,
) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	m := make(map[string]provider.CourierSource, len(couriers))
	for _, c := range couriers {
		m[c.Name()] = c
	}
	return &Poller{
		deliveries: deliveries,
		creds:      creds,
		couriers:   m,
		events:     events,
		dispatch:   dispatch,
		logger:     logger,
		failures:   failures,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		inflight:   make(map[uuid.UUID]struct{}),
	}
}

// Run polls until the context is cancelled, then waits for in-flight
// polls to drain.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-t.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce launches one poll round and returns without waiting for it.
func (p *Poller) PollOnce(ctx context.Context) {
	due, err := p.deliveries.ListPollable(ctx, p.cfg.Batch)
	if err != nil {
		p.logger.Error("list pollable deliveries", logx.Err(err))
		return
	}

	for i := range due {
		d := due[i]
		if !p.claim(d.ID) {
			continue
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.release(d.ID)
			p.poll(ctx, d)
		}()
	}
}

// Wait blocks until all launched polls return. Test hook and shutdown aid.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) claim(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Poller) release(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

func (p *Poller) poll(ctx context.Context, d domain.Delivery) {
	courier, ok := p.couriers[d.Provider]
	if !ok {
		p.logger.Error("pollable delivery has unknown provider",
			logx.String("delivery_id", d.ID.String()),
			logx.String("provider", d.Provider),
		)
		return
	}

	creds, err := p.creds.Credentials(ctx, d.RestaurantID)
	if err != nil {
		p.recordFailure(ctx, d, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	st, err := courier.PollStatus(callCtx, creds, d.ExternalID)
	cancel()
	if err != nil {
		p.recordFailure(ctx, d, err)
		return
	}

	if err := p.deliveries.RecordPollResult(ctx, d.ID, p.now(), false); err != nil {
		p.logger.Error("record poll result", logx.String("delivery_id", d.ID.String()), logx.Err(err))
	}

	ev := p.events.Polled(d.Provider, st)
	if ev.Type == event.StatusUnchanged {
		return
	}
	if err := p.dispatch.Apply(ctx, d.ID, ev); err != nil {
		p.logger.Warn("polled status not applied",
			logx.String("delivery_id", d.ID.String()),
			logx.String("event", string(ev.Type)),
			logx.Err(err),
		)
	}
}

// recordFailure books a failed poll. The delivery keeps its state; it
// will be polled again next round.
func (p *Poller) recordFailure(ctx context.Context, d domain.Delivery, cause error) {
	if p.failures != nil {
		p.failures.Inc()
	}
	p.logger.Warn("delivery poll failed",
		logx.String("delivery_id", d.ID.String()),
		logx.String("provider", d.Provider),
		logx.Int("failures", d.PollFailures+1),
		logx.Err(cause),
	)
	if err := p.deliveries.RecordPollResult(ctx, d.ID, p.now(), true); err != nil {
		p.logger.Error("record poll result", logx.String("delivery_id", d.ID.String()), logx.Err(err))
	}
}
