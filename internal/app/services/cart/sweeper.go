package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/metrics"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/system"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Sweeper prunes dangling cart lines on a cron schedule. Book deletion
// already detaches lines through the service; the sweeper catches rows
// removed behind the service's back.
type Sweeper struct {
	service  *Service
	schedule string
	log      *logger.Logger
	timeout  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a lifecycle-managed sweeper. schedule accepts standard
// cron expressions and descriptors such as "@every 1h".
func NewSweeper(svc *Service, schedule string, log *logger.Logger) (*Sweeper, error) {
	if log == nil {
		log = logger.NewDefault("cart-sweeper")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{service: svc, schedule: schedule, log: log, timeout: time.Minute}, nil
}

func (w *Sweeper) Name() string { return "cart-sweeper" }

func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { w.Sweep(context.WithoutCancel(ctx)) }); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()
	w.cron = c
	w.running = true
	w.log.WithField("schedule", w.schedule).Info("cart sweeper started")
	return nil
}

func (w *Sweeper) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	c := w.cron
	w.cron = nil
	w.running = false
	w.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	w.log.Info("cart sweeper stopped")
	return nil
}

// Sweep runs one pass and returns the number of lines removed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	pruned, err := w.service.PruneDangling(ctx)
	metrics.RecordSweep(pruned, err == nil)
	if err != nil {
		w.log.WithError(err).WithField("pruned", pruned).Warn("cart sweep failed")
		return pruned
	}
	if pruned > 0 {
		w.log.WithField("pruned", pruned).Info("dangling cart lines pruned")
	}
	return pruned
}
