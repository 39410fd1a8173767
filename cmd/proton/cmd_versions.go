package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cubicmc/proton/internal/config"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/httpclient"
	"github.com/cubicmc/proton/pkg/manifest"
)

func newVersionsCmd() *cobra.Command {
	var releasesOnly bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the versions known to the manifest origin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg := config.MustLoad(cfgPath)

			log := slog.New(slog.NewTextHandler(io.Discard, nil))
			resolver := manifest.NewResolver(httpclient.New(), log,
				manifest.WithManifestURL(cfg.ManifestURL))

			man, err := resolver.Manifest(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("latest release: %s, latest snapshot: %s\n",
				man.Latest.Release, man.Latest.Snapshot)
			for _, v := range man.Versions {
				if releasesOnly && v.Type != entity.VersionTypeRelease {
					continue
				}
				fmt.Printf("%-24s %s\n", v.ID, v.Type)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&releasesOnly, "releases", false, "only list release versions")

	return cmd
}
