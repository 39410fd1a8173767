package downloader

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/cubicmc/proton/pkg/common"
	"github.com/cubicmc/proton/pkg/entity"
)

// fakeFetcher serves canned bodies and instruments concurrency: maxInflight
// records the highest number of simultaneously running Fetch calls.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if cur <= max || f.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &common.NetworkError{URL: url, Status: 404}
	}

	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}

	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func totalsFor(tasks []*entity.DownloadTask) map[entity.Category]int {
	totals := make(map[entity.Category]int)
	for _, t := range tasks {
		totals[t.Category]++
	}

	return totals
}

func newTestScheduler(t *testing.T, fs afero.Fs, fetcher *fakeFetcher, workers int, sink chan entity.ProgressEvent, tasks []*entity.DownloadTask) *scheduler {
	t.Helper()

	return &scheduler{
		fs:       fs,
		fetcher:  fetcher,
		workers:  workers,
		attempts: 3,
		backoff:  time.Millisecond,
		reporter: newReporter(sink, totalsFor(tasks)),
		log:      testLogger(),
	}
}
