package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cubicmc/proton/internal/config"
	"github.com/cubicmc/proton/pkg/downloader"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/httpclient"
	"github.com/cubicmc/proton/pkg/manifest"
)

const progressBuffer = 64

func newDownloadCmd() *cobra.Command {
	var (
		root        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "download <version>",
		Short: "Resolve a version and materialize it on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg := config.MustLoad(cfgPath)
			if root != "" {
				cfg.Downloader.InstallRoot = root
			}
			if concurrency > 0 {
				cfg.Downloader.Concurrency = concurrency
			}

			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fetcher := httpclient.New()
			resolver := manifest.NewResolver(fetcher, log, manifest.WithManifestURL(cfg.ManifestURL))

			version, err := resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			dl := downloader.New(cfg.Downloader.InstallRoot, version,
				downloader.WithFetcher(fetcher),
				downloader.WithLogger(log),
				downloader.WithConcurrency(cfg.Downloader.Concurrency),
				downloader.WithRetries(cfg.Downloader.Attempts, cfg.Downloader.Backoff()),
				downloader.WithResourcesURL(cfg.ResourcesURL),
			)

			sink := make(chan entity.ProgressEvent, progressBuffer)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range sink {
					fmt.Printf("\r%-8s %d/%d", ev.Category, ev.Current, ev.Total)
				}
				fmt.Println()
			}()

			err = dl.DownloadAll(ctx, sink)
			close(sink)
			<-done

			if err != nil {
				return err
			}

			fmt.Printf("Installed %s under %s\n", version.ID, cfg.Downloader.InstallRoot)

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "install root (overrides config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max in-flight transfers (overrides config)")

	return cmd
}
