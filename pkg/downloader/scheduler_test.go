package downloader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cubicmc/proton/pkg/common"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/util"
)

func libraryTask(url, dest string, body []byte) *entity.DownloadTask {
	return &entity.DownloadTask{
		Name:     dest,
		URL:      url,
		Dest:     dest,
		SHA1:     util.SHA1String(string(body)),
		Size:     int64(len(body)),
		Category: entity.CategoryLibrary,
	}
}

func TestSchedulerDownloadsAndVerifies(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	body := []byte("library bytes")
	fetcher.bodies["https://dl.test/lib.jar"] = body

	task := libraryTask("https://dl.test/lib.jar", "/root/libraries/lib.jar", body)
	sch := newTestScheduler(t, fs, fetcher, 4, nil, []*entity.DownloadTask{task})

	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})
	require.Len(t, outcomes, 1)
	require.Equal(t, entity.OutcomeSucceeded, outcomes[0].State)

	got, err := afero.ReadFile(fs, task.Dest)
	require.NoError(t, err)
	require.Equal(t, body, got)

	// No temp file left behind.
	exists, err := afero.Exists(fs, task.Dest+tmpSuffix)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSchedulerSkipsValidExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	body := []byte("already here")

	task := libraryTask("https://dl.test/lib.jar", "/root/libraries/lib.jar", body)
	require.NoError(t, afero.WriteFile(fs, task.Dest, body, 0o644))

	sch := newTestScheduler(t, fs, fetcher, 4, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})

	require.Len(t, outcomes, 1)
	require.Equal(t, entity.OutcomeSkipped, outcomes[0].State)
	require.Zero(t, fetcher.totalCalls(), "a valid destination must not touch the network")
}

func TestSchedulerReplacesStaleFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	body := []byte("fresh content")
	fetcher.bodies["https://dl.test/lib.jar"] = body

	task := libraryTask("https://dl.test/lib.jar", "/root/libraries/lib.jar", body)
	require.NoError(t, afero.WriteFile(fs, task.Dest, []byte("stale partial"), 0o644))

	sch := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})

	require.Equal(t, entity.OutcomeSucceeded, outcomes[0].State)
	got, err := afero.ReadFile(fs, task.Dest)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestSchedulerTruncatedTransferRetried(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	body := []byte("short")
	fetcher.bodies["https://dl.test/client.jar"] = body

	task := &entity.DownloadTask{
		Name:     "client.jar",
		URL:      "https://dl.test/client.jar",
		Dest:     "/root/versions/x/x.jar",
		SHA1:     util.SHA1String(string(body)),
		Size:     50_000_000,
		Category: entity.CategoryClient,
	}

	sch := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})

	require.Equal(t, entity.OutcomeFailed, outcomes[0].State)

	var truncErr *common.TruncatedTransferError
	require.ErrorAs(t, outcomes[0].Err, &truncErr)
	require.Equal(t, int64(50_000_000), truncErr.Expected)
	require.Equal(t, int64(len(body)), truncErr.Actual)

	require.Equal(t, sch.attempts, fetcher.callCount(task.URL), "truncation must be retried, not accepted")

	// The corrupt payload never reaches the destination.
	exists, err := afero.Exists(fs, task.Dest)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSchedulerHashMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.bodies["https://dl.test/lib.jar"] = []byte("tampered")

	task := &entity.DownloadTask{
		Name:     "lib.jar",
		URL:      "https://dl.test/lib.jar",
		Dest:     "/root/libraries/lib.jar",
		SHA1:     util.SHA1String("expected content"),
		Category: entity.CategoryLibrary,
	}

	sch := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})

	require.Equal(t, entity.OutcomeFailed, outcomes[0].State)

	var hashErr *common.HashMismatchError
	require.ErrorAs(t, outcomes[0].Err, &hashErr)
	require.Equal(t, task.SHA1, hashErr.Expected)

	exists, err := afero.Exists(fs, task.Dest+tmpSuffix)
	require.NoError(t, err)
	require.False(t, exists, "mismatching temp file must be discarded")
}

func TestSchedulerNoHashPublished(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	body := []byte("unverifiable")
	fetcher.bodies["https://dl.test/blob"] = body

	task := &entity.DownloadTask{
		Name:     "blob",
		URL:      "https://dl.test/blob",
		Dest:     "/root/blob",
		Category: entity.CategoryLibrary,
	}

	sch := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})
	require.Equal(t, entity.OutcomeSucceeded, outcomes[0].State)

	// Second run: existence alone is enough when no hash is published.
	sch2 := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes = sch2.run(context.Background(), []*entity.DownloadTask{task})
	require.Equal(t, entity.OutcomeSkipped, outcomes[0].State)
	require.Equal(t, 1, fetcher.callCount(task.URL))
}

func TestSchedulerNonRetryableFailsImmediately(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.errs["https://dl.test/lib.jar"] = fmt.Errorf("cannot build request for ://bad: parse error")

	task := &entity.DownloadTask{
		Name:     "lib.jar",
		URL:      "https://dl.test/lib.jar",
		Dest:     "/root/libraries/lib.jar",
		Category: entity.CategoryLibrary,
	}

	sch := newTestScheduler(t, fs, fetcher, 1, nil, []*entity.DownloadTask{task})
	outcomes := sch.run(context.Background(), []*entity.DownloadTask{task})

	require.Equal(t, entity.OutcomeFailed, outcomes[0].State)
	require.Equal(t, 1, fetcher.callCount(task.URL), "non-network failures are not retried")
}

func TestSchedulerCollectsAllOutcomes(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	good := []byte("good")
	fetcher.bodies["https://dl.test/good.jar"] = good

	tasks := []*entity.DownloadTask{
		libraryTask("https://dl.test/good.jar", "/root/libraries/good.jar", good),
		libraryTask("https://dl.test/missing.jar", "/root/libraries/missing.jar", []byte("never served")),
	}

	sch := newTestScheduler(t, fs, fetcher, 2, nil, tasks)
	outcomes := sch.run(context.Background(), tasks)

	require.Len(t, outcomes, 2, "one failure must not abort the run")

	states := make(map[string]entity.OutcomeState)
	for _, out := range outcomes {
		states[out.Task.URL] = out.State
	}
	require.Equal(t, entity.OutcomeSucceeded, states["https://dl.test/good.jar"])
	require.Equal(t, entity.OutcomeFailed, states["https://dl.test/missing.jar"])
}

func TestSchedulerConcurrencyBound(t *testing.T) {
	const limit = 5

	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.delay = 5 * time.Millisecond // keeps transfers overlapping

	var tasks []*entity.DownloadTask
	for i := 0; i < 40; i++ {
		url := fmt.Sprintf("https://dl.test/lib-%d.jar", i)
		body := []byte(fmt.Sprintf("body-%d", i))
		fetcher.bodies[url] = body
		tasks = append(tasks, libraryTask(url, fmt.Sprintf("/root/libraries/lib-%d.jar", i), body))
	}

	sch := newTestScheduler(t, fs, fetcher, limit, nil, tasks)
	outcomes := sch.run(context.Background(), tasks)

	require.Len(t, outcomes, 40)
	for _, out := range outcomes {
		require.Equal(t, entity.OutcomeSucceeded, out.State)
	}
	require.LessOrEqual(t, fetcher.maxInflight.Load(), int32(limit))
}

func TestSchedulerProgressEvents(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()

	var tasks []*entity.DownloadTask
	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://dl.test/asset-%d", i)
		body := []byte(fmt.Sprintf("asset-%d", i))
		fetcher.bodies[url] = body
		tasks = append(tasks, &entity.DownloadTask{
			Name:     fmt.Sprintf("asset-%d", i),
			URL:      url,
			Dest:     fmt.Sprintf("/root/assets/objects/%02d/asset", i),
			SHA1:     util.SHA1String(fmt.Sprintf("asset-%d", i)),
			Category: entity.CategoryAsset,
		})
	}

	sink := make(chan entity.ProgressEvent, len(tasks)*2)
	sch := newTestScheduler(t, fs, fetcher, 4, sink, tasks)
	sch.run(context.Background(), tasks)
	close(sink)

	last := 0
	count := 0
	for ev := range sink {
		count++
		require.Equal(t, entity.CategoryAsset, ev.Category)
		require.Equal(t, len(tasks), ev.Total)
		require.GreaterOrEqual(t, ev.Current, last, "per-category progress must be non-decreasing")
		require.LessOrEqual(t, ev.Current, ev.Total)
		last = ev.Current
	}
	require.Equal(t, len(tasks), count)
	require.Equal(t, len(tasks), last)
}

func TestSchedulerCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()

	var tasks []*entity.DownloadTask
	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("https://dl.test/lib-%d.jar", i)
		body := []byte(fmt.Sprintf("body-%d", i))
		fetcher.bodies[url] = body
		tasks = append(tasks, libraryTask(url, fmt.Sprintf("/root/libraries/lib-%d.jar", i), body))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sch := newTestScheduler(t, fs, fetcher, 2, nil, tasks)
	outcomes := sch.run(ctx, tasks)

	require.Empty(t, outcomes, "workers must stop pulling tasks once cancelled")
	require.True(t, errors.Is(ctx.Err(), context.Canceled))
}
