package downloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/cubicmc/proton/pkg/common"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/httpclient"
	"github.com/cubicmc/proton/pkg/util"
)

const tmpSuffix = ".tmp"

// scheduler executes download tasks over a bounded worker pool. The pool
// size caps in-flight transfers, not total tasks: a worker that finishes a
// task immediately pulls the next one from the shared queue.
type scheduler struct {
	fs       afero.Fs
	fetcher  httpclient.Fetcher
	workers  int
	attempts int
	backoff  time.Duration
	reporter *reporter
	log      *slog.Logger
}

// run drives every task to a terminal state and collects the outcomes. A
// single task's permanent failure never aborts the run. Cancellation stops
// workers from pulling new tasks; attempts already in flight finish or fail
// on their own.
//
// Tasks must have unique destinations; the selector guarantees it.
func (s *scheduler) run(ctx context.Context, tasks []*entity.DownloadTask) []entity.DownloadOutcome {
	if len(tasks) == 0 {
		return nil
	}

	workers := s.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	in := make(chan *entity.DownloadTask, len(tasks))
	out := make(chan entity.DownloadOutcome, len(tasks))

	for _, task := range tasks {
		in <- task
	}
	close(in)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go s.worker(ctx, n, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	outcomes := make([]entity.DownloadOutcome, 0, len(tasks))
	for outcome := range out {
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (s *scheduler) worker(ctx context.Context, n int, in chan *entity.DownloadTask, out chan entity.DownloadOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.log.With(slog.Int("worker_id", n))

	for task := range in {
		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		default:
		}

		outcome := s.execute(ctx, log, task)
		s.reporter.advance(task.Category, task.Name)
		out <- outcome
	}
}

// execute drives one task to a terminal state: skip when the destination
// already holds verified content, otherwise attempt the transfer under the
// retry budget. Only network-layer and integrity failures are retried.
func (s *scheduler) execute(ctx context.Context, log *slog.Logger, task *entity.DownloadTask) entity.DownloadOutcome {
	valid, err := s.alreadyValid(task)
	if err != nil {
		return entity.DownloadOutcome{Task: task, State: entity.OutcomeFailed, Err: err}
	}
	if valid {
		return entity.DownloadOutcome{Task: task, State: entity.OutcomeSkipped}
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		lastErr = s.attempt(ctx, task)
		if lastErr == nil {
			return entity.DownloadOutcome{Task: task, State: entity.OutcomeSucceeded}
		}
		if !common.Retryable(lastErr) {
			break
		}

		log.Warn("Download attempt failed",
			slog.String("url", task.URL),
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr))

		if attempt == s.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return entity.DownloadOutcome{Task: task, State: entity.OutcomeFailed, Err: ctx.Err()}
		case <-time.After(s.backoff):
		}
	}

	return entity.DownloadOutcome{Task: task, State: entity.OutcomeFailed, Err: lastErr}
}

// alreadyValid reports whether the destination exists and matches the
// expected hash, making re-runs idempotent without network access. Tasks
// without a published hash skip verification but not the existence check.
func (s *scheduler) alreadyValid(task *entity.DownloadTask) (bool, error) {
	if _, err := s.fs.Stat(task.Dest); err != nil {
		return false, nil
	}
	if task.SHA1 == "" {
		return true, nil
	}

	actual, err := util.SHA1File(s.fs, task.Dest)
	if err != nil {
		return false, fmt.Errorf("cannot hash existing file %s: %w", task.Dest, err)
	}

	return actual == task.SHA1, nil
}

// attempt performs one transfer: stream the body into a temporary file next
// to the destination while hashing incrementally, verify size and digest,
// then atomically rename. The payload is never buffered in memory and a
// crash can only ever leave a recognizably incomplete .tmp file behind.
func (s *scheduler) attempt(ctx context.Context, task *entity.DownloadTask) error {
	body, err := s.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := s.fs.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", task.Dest, err)
	}

	tmp := task.Dest + tmpSuffix
	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("cannot create temp file %s: %w", tmp, err)
	}

	hasher := sha1.New()
	received, copyErr := io.Copy(io.MultiWriter(f, hasher), body)
	closeErr := f.Close()

	if copyErr != nil {
		s.discard(tmp)

		// A stream that dies mid-read is a network failure, retryable.
		return &common.NetworkError{URL: task.URL, Cause: copyErr}
	}
	if closeErr != nil {
		s.discard(tmp)

		return fmt.Errorf("cannot finish temp file %s: %w", tmp, closeErr)
	}

	if err := s.verify(task, tmp, received, hasher); err != nil {
		s.discard(tmp)

		return err
	}

	// A destination that exists here holds stale mismatching content (a
	// valid one was skipped earlier); drop it so Rename lands cleanly on
	// every afero backend.
	if _, statErr := s.fs.Stat(task.Dest); statErr == nil {
		s.discard(task.Dest)
	}

	if err := s.fs.Rename(tmp, task.Dest); err != nil {
		return fmt.Errorf("cannot move %s into place: %w", tmp, err)
	}

	return nil
}

func (s *scheduler) verify(task *entity.DownloadTask, tmp string, received int64, hasher hash.Hash) error {
	if task.Size > 0 && received != task.Size {
		return &common.TruncatedTransferError{
			Path:     task.Dest,
			Expected: task.Size,
			Actual:   received,
		}
	}

	if task.SHA1 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != task.SHA1 {
			return &common.HashMismatchError{
				Path:     task.Dest,
				Expected: task.SHA1,
				Actual:   actual,
			}
		}
	}

	return nil
}

func (s *scheduler) discard(tmp string) {
	if err := s.fs.Remove(tmp); err != nil {
		s.log.Warn("Cannot remove temp file", slog.String("path", tmp), slog.Any("error", err))
	}
}
