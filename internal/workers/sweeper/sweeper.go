// Package sweeper runs the scheduled-email sweep on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"inclusiv/internal/ports"
)

// Sweeper is the part of ports.Outreach the cron job drives.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (ports.SweepReport, error)
}

// Standard 5-field expressions plus descriptors such as @hourly.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Worker struct {
	sweeper Sweeper
	cron    *cron.Cron
	log     *zap.Logger
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// New validates schedule and prepares the job. Overlapping runs in the same
// process are skipped.
func New(s Sweeper, schedule string, log *zap.Logger) (*Worker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sweeper")
	cl := cronLogger{log: log.Sugar()}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{sweeper: s, cron: c, log: log, now: time.Now, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(schedule, w.run); err != nil {
		cancel()
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return w, nil
}

// RunOnce performs a sweep at the current time.
func (w *Worker) RunOnce(ctx context.Context) (ports.SweepReport, error) {
	return w.sweeper.Sweep(ctx, w.now())
}

func (w *Worker) run() {
	rep, err := w.RunOnce(w.ctx)
	if err != nil {
		w.log.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	w.log.Debug("scheduled sweep done",
		zap.Int("claimed", rep.Claimed),
		zap.Int("sent", rep.Sent),
		zap.Int("failed", rep.Failed),
	)
}

func (w *Worker) Start() {
	w.log.Info("sweeper started")
	w.cron.Start()
}

// Stop cancels a running sweep and waits for it to return.
func (w *Worker) Stop() {
	w.cancel()
	<-w.cron.Stop().Done()
	w.log.Info("sweeper stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ log *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
