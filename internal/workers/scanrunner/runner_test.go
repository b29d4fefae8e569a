package scanrunner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusiv/internal/adapters/memory"
	"inclusiv/internal/domain"
	"inclusiv/internal/workers/scanrunner"
)

type recordingProcessor struct {
	mu  sync.Mutex
	ids map[string]int
}

func (p *recordingProcessor) Process(_ context.Context, scanID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[scanID]++
	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func TestRun_ProcessesEachQueuedScanOnce(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	var want []string
	for i := 0; i < 10; i++ {
		id, err := store.CreateScan(ctx, domain.ScanResult{URL: "https://example.com", Status: domain.ScanPending})
		require.NoError(t, err)
		want = append(want, id)
	}

	proc := &recordingProcessor{ids: map[string]int{}}
	done := scanrunner.Run(ctx, store, proc, scanrunner.Options{Concurrency: 3, PollInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool { return proc.count() == len(want) }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}

	for _, id := range want {
		assert.Equal(t, 1, proc.ids[id], id)
		scan, err := store.GetScan(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.ScanProcessing, scan.Status, "claimed before processing")
	}
}

func TestRun_ZeroConcurrency(t *testing.T) {
	done := scanrunner.Run(context.Background(), memory.New(), &recordingProcessor{}, scanrunner.Options{})
	_, open := <-done
	assert.False(t, open)
}
