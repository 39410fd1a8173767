// Package downloader plans and executes every transfer a resolved version
// needs: client jar, platform-filtered libraries, content-addressed assets
// and native archives, then extracts the natives into a runtime directory.
package downloader

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cubicmc/proton/pkg/common"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/extractor"
	"github.com/cubicmc/proton/pkg/httpclient"
	"github.com/cubicmc/proton/pkg/manifest"
	"github.com/cubicmc/proton/pkg/rules"
)

const (
	defaultConcurrency = 128
	defaultAttempts    = 3
	defaultBackoff     = 500 * time.Millisecond
)

// MinecraftDownloader materializes one NormalizedVersion under an install
// root. It holds the single HTTP handle and filesystem used by every task.
type MinecraftDownloader struct {
	fs           afero.Fs
	fetcher      httpclient.Fetcher
	root         string
	version      *entity.NormalizedVersion
	platform     rules.Platform
	features     rules.Features
	resourcesURL string
	concurrency  int
	attempts     int
	backoff      time.Duration
	log          *slog.Logger

	outcomes []entity.DownloadOutcome
}

type Option func(*MinecraftDownloader)

func WithFS(fs afero.Fs) Option {
	return func(d *MinecraftDownloader) {
		d.fs = fs
	}
}

func WithFetcher(f httpclient.Fetcher) Option {
	return func(d *MinecraftDownloader) {
		d.fetcher = f
	}
}

func WithPlatform(p rules.Platform) Option {
	return func(d *MinecraftDownloader) {
		d.platform = p
	}
}

func WithFeatures(f rules.Features) Option {
	return func(d *MinecraftDownloader) {
		d.features = f
	}
}

func WithConcurrency(n int) Option {
	return func(d *MinecraftDownloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithRetries(attempts int, backoff time.Duration) Option {
	return func(d *MinecraftDownloader) {
		if attempts > 0 {
			d.attempts = attempts
		}
		d.backoff = backoff
	}
}

func WithResourcesURL(url string) Option {
	return func(d *MinecraftDownloader) {
		d.resourcesURL = url
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(d *MinecraftDownloader) {
		d.log = log
	}
}

func New(installRoot string, version *entity.NormalizedVersion, opts ...Option) *MinecraftDownloader {
	d := &MinecraftDownloader{
		fs:           afero.NewOsFs(),
		fetcher:      httpclient.New(),
		root:         installRoot,
		version:      version,
		platform:     rules.Current(),
		features:     rules.Features{},
		resourcesURL: manifest.DefaultResourcesURL,
		concurrency:  defaultConcurrency,
		attempts:     defaultAttempts,
		backoff:      defaultBackoff,
		log:          slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.log = d.log.With(
		slog.String("item", "MinecraftDownloader"),
		slog.String("version", version.ID),
		slog.String("run_id", uuid.NewString()),
	)

	return d
}

// DownloadAll plans every task for the version, runs them under the
// concurrency cap and extracts the downloaded natives. Individual task
// failures never abort the run; they are aggregated into the returned
// error while Outcomes keeps the full per-task record.
//
// sink, when non-nil, receives one ProgressEvent per terminal task state.
// A full sink never blocks the workers: the oldest unread event is dropped.
func (d *MinecraftDownloader) DownloadAll(ctx context.Context, sink chan entity.ProgressEvent) error {
	if err := d.persistDescriptor(); err != nil {
		return err
	}

	tasks, err := d.selectTasks(ctx)
	if err != nil {
		return err
	}

	totals := make(map[entity.Category]int)
	for _, t := range tasks {
		totals[t.Category]++
	}

	sch := &scheduler{
		fs:       d.fs,
		fetcher:  d.fetcher,
		workers:  d.concurrency,
		attempts: d.attempts,
		backoff:  d.backoff,
		reporter: newReporter(sink, totals),
		log:      d.log,
	}

	d.outcomes = sch.run(ctx, tasks)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var failures []*common.TaskFailure
	var archives []extractor.Archive
	for _, out := range d.outcomes {
		switch out.State {
		case entity.OutcomeFailed:
			failures = append(failures, &common.TaskFailure{
				URL:  out.Task.URL,
				Path: out.Task.Dest,
				Err:  out.Err,
			})
		case entity.OutcomeSucceeded, entity.OutcomeSkipped:
			if out.Task.Category == entity.CategoryNative {
				archives = append(archives, extractor.Archive{
					Path:    out.Task.Dest,
					Exclude: out.Task.ExtractExclude,
				})
			}
		}
	}

	extractErr := extractor.ExtractAll(d.fs, archives, d.NativesDir(), d.log)

	var downloadErr error
	if len(failures) > 0 {
		downloadErr = &common.DownloadErrors{Failures: failures}
	}

	return errors.Join(downloadErr, extractErr)
}

// Outcomes returns the per-task record of the last run for partial-success
// handling.
func (d *MinecraftDownloader) Outcomes() []entity.DownloadOutcome {
	return d.outcomes
}

// NativesDir is the per-version scratch directory natives are extracted to.
func (d *MinecraftDownloader) NativesDir() string {
	return filepath.Join(d.root, "natives", d.version.ID)
}

// ClientJar is the on-disk location of the primary executable payload.
func (d *MinecraftDownloader) ClientJar() string {
	return filepath.Join(d.root, "versions", d.version.ID, d.version.ID+".jar")
}

// Classpath returns the ordered jar paths of the installation: every
// platform-applicable library with a generic artifact, then the client jar.
func (d *MinecraftDownloader) Classpath() []string {
	var cp []string
	for i := range d.version.Libraries {
		lib := &d.version.Libraries[i]
		if !rules.Evaluate(lib.Rules, d.platform, d.features) {
			continue
		}

		rel, ok := artifactPath(lib)
		if !ok {
			continue
		}
		cp = append(cp, filepath.Join(d.root, "libraries", filepath.FromSlash(rel)))
	}

	return append(cp, d.ClientJar())
}

// persistDescriptor writes the published descriptor document under
// versions/<id>/ so a later launch can read it offline.
func (d *MinecraftDownloader) persistDescriptor() error {
	if len(d.version.Raw) == 0 {
		return nil
	}

	dir := filepath.Join(d.root, "versions", d.version.ID)
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return afero.WriteFile(d.fs, filepath.Join(dir, d.version.ID+".json"), d.version.Raw, 0o644)
}
