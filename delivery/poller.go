package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatrelay/bus"
)

// DefaultInterval is the reference polling period.
const DefaultInterval = time.Second

// Config configures a delivery poller for one local identity session.
type Config struct {
	// Identity is the identity whose inbound envelopes are polled.
	Identity string
	// Interval is the polling period; DefaultInterval when zero.
	Interval time.Duration
	// ActiveConversation reports which conversation the UI is focused on
	// (any identity form), or "" when none. Optional.
	ActiveConversation func() string
	// Notifier receives alert side effects. Optional.
	Notifier Notifier
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Poller periodically scans the shared envelope log for traffic addressed
// to the local identity and hands per-sender batches to the materializer.
//
// Ticks are serialized by construction: one loop goroutine runs each tick
// synchronously, so a new tick never starts before the previous merge has
// completed, and Stop never interrupts a half-applied merge.
type Poller struct {
	cfg          Config
	envelopes    bus.Log
	materializer *Materializer
	log          *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller with config defaults applied.
func NewPoller(cfg Config, envelopes bus.Log, materializer *Materializer) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		cfg:          cfg,
		envelopes:    envelopes,
		materializer: materializer,
		log:          logger,
	}
}

// Start begins background polling.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.wg.Add(1)
		go p.loop()
	})
}

// Stop halts polling. It returns once the in-flight tick, if any, has
// finished its merge.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}

func (p *Poller) loop() {
	defer p.wg.Done()

	// Deliver backlog immediately rather than waiting a full period.
	p.runTick()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runTick()
		case <-p.ctx.Done():
			return
		}
	}
}

// runTick degrades on failure: the error is logged, the tick abandoned and
// the next tick retries independently.
func (p *Poller) runTick() {
	if err := p.tick(); err != nil {
		p.log.Warn("delivery tick skipped", zap.Error(err))
	}
}

// tick returns an error only when the whole tick was lost (the scan
// failed). A failing per-sender batch is logged on its own and the other
// batches still materialize.
func (p *Poller) tick() error {
	me := bus.Canonicalize(p.cfg.Identity)
	if me == "" || me == bus.AnonymousIdentity {
		return nil
	}

	envelopes, err := p.envelopes.ScanEnvelopes(me)
	if err != nil {
		return fmt.Errorf("scan envelopes: %w", err)
	}
	if len(envelopes) == 0 {
		return nil
	}

	active := ""
	if p.cfg.ActiveConversation != nil {
		active = bus.Canonicalize(p.cfg.ActiveConversation())
	}

	for _, batch := range partitionBySender(envelopes) {
		sender := batch[0].From
		result, err := p.materializer.Apply(p.cfg.Identity, sender, batch)
		if err != nil {
			p.log.Warn("materialize batch failed",
				zap.String("sender", sender), zap.Error(err))
			continue
		}
		if result.NewMessages == 0 && !result.CreatedContact {
			continue
		}

		p.log.Debug("materialized batch",
			zap.String("sender", sender),
			zap.Int("new_messages", result.NewMessages),
			zap.Bool("created_contact", result.CreatedContact))

		decision := Decide(active == bus.Canonicalize(sender), result)
		if p.cfg.Notifier != nil && (decision.PlaySound || decision.ShowBadge) {
			p.cfg.Notifier.Notify(result.Sender, decision)
		}
	}

	return nil
}

// partitionBySender groups a scan result by canonical sender so each
// sender's messages merge as one unit. Batch order is deterministic.
func partitionBySender(envelopes []bus.Envelope) [][]bus.Envelope {
	byKey := make(map[string][]bus.Envelope)
	keys := make([]string, 0)
	for _, env := range envelopes {
		key := bus.Canonicalize(env.From)
		if _, exists := byKey[key]; !exists {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], env)
	}

	sort.Strings(keys)
	batches := make([][]bus.Envelope, 0, len(keys))
	for _, key := range keys {
		batches = append(batches, byKey[key])
	}
	return batches
}
