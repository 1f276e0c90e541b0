package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// sweepTimeout bounds a single network's reconciliation.
const sweepTimeout = 30 * time.Second

// Poller periodically reconciles every network so join, online and
// offline events fire even when nobody is looking at the console.
type Poller struct {
	store     storage.NetworkStorage
	reconcile func(ctx context.Context, networkID string) error
	pool      *Pool
	cron      *cron.Cron
	interval  time.Duration
}

// NewPoller builds a poller that calls reconcile for each network
// every interval.
func NewPoller(store storage.NetworkStorage, reconcile func(ctx context.Context, networkID string) error, interval time.Duration) *Poller {
	return &Poller{
		store:     store,
		reconcile: reconcile,
		pool:      NewPool(4),
		cron:      cron.New(),
		interval:  interval,
	}
}

// Start schedules the sweep and launches the workers.
func (p *Poller) Start() error {
	p.pool.Start()
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), p.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	p.cron.Start()
	log.Info("Reconciliation poller started", "interval", p.interval)
	return nil
}

// Stop halts the schedule and waits for running sweeps.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	p.pool.Stop()
	log.Info("Reconciliation poller stopped")
}

// sweep queues one reconciliation job per network.
func (p *Poller) sweep() {
	networks, err := p.store.ListNetworks(&model.NetworkFilter{})
	if err != nil {
		log.Error("Sweep could not list networks", "error", err)
		return
	}

	for i := range networks {
		networkID := networks[i].ID
		err := p.pool.Submit(Job{
			ID: "reconcile-" + networkID,
			Handler: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
				defer cancel()
				return p.reconcile(ctx, networkID)
			},
		})
		if err != nil {
			return
		}
	}
}
