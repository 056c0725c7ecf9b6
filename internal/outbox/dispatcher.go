package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/gearmart/internal/notify"
)

// DispatcherConfig controls drain timing and batch size.
type DispatcherConfig struct {
	// Interval between drain passes.
	Interval time.Duration
	// BatchSize is the maximum number of events claimed per pass.
	BatchSize int
	// Workers is the number of concurrent deliveries per pass.
	Workers int
}

// Dispatcher drains the outbox and delivers events through a Notifier.
// Failed deliveries stay pending and are retried on the next pass. Run one
// dispatcher per deployment; events may be delivered more than once if a
// crash lands between delivery and MarkDispatched.
type Dispatcher struct {
	queue    Queue
	notifier notify.Notifier
	cfg      DispatcherConfig
	lg       *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. Zero config fields get sane defaults.
func NewDispatcher(queue Queue, notifier notify.Notifier, cfg DispatcherConfig, lg *zap.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Dispatcher{
		queue:    queue,
		notifier: notifier,
		cfg:      cfg,
		lg:       lg,
	}
}

// Start launches the background drain loop. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
					d.lg.Error("outbox drain failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the drain loop and waits for the in-flight pass to finish.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

// DrainOnce delivers one batch of pending events. Individual delivery
// failures are logged and left pending; only queue errors are returned.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	events, err := d.queue.ListPending(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for _, e := range events {
		g.Go(func() error {
			if err := d.notifier.Send(ctx, e.Recipient, e.Template, e.Payload); err != nil {
				d.lg.Warn("notification delivery failed",
					zap.String("event_id", e.ID),
					zap.String("event", e.Name),
					zap.String("template", e.Template),
					zap.Error(err),
				)
				return nil
			}
			if err := d.queue.MarkDispatched(ctx, e.ID); err != nil {
				d.lg.Error("mark dispatched failed",
					zap.String("event_id", e.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	return g.Wait()
}
