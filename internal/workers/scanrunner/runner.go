package scanrunner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"inclusiv/internal/ports"
)

// ScanProcessor runs a claimed scan to a terminal state.
type ScanProcessor interface {
	Process(ctx context.Context, scanID string) error
}

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Run starts a dispatcher that claims queued scans and worker goroutines that
// process them. The returned channel closes once every worker has exited
// after ctx is cancelled.
func Run(ctx context.Context, queue ports.ScanQueue, processor ScanProcessor, opts Options) <-chan struct{} {
	done := make(chan struct{})
	if opts.Concurrency < 1 {
		close(done)
		return done
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scanrunner")
	jobsCh := make(chan string, opts.Concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					scanID, found, err := queue.ClaimNextScan(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.Error("scan claim failed", zap.Error(err))
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- scanID:
					case <-ctx.Done():
						// claimed but never started; left in processing
						log.Warn("shutdown dropped claimed scan", zap.String("scan_id", scanID))
						return
					}
				}
			}
		}
	}()

	// workers
	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for scanID := range jobsCh {
				if err := processor.Process(ctx, scanID); err != nil {
					log.Error("scan processing failed",
						zap.Int("worker", idx),
						zap.String("scan_id", scanID),
						zap.Error(err),
					)
				}
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
