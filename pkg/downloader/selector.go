package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/manifest"
	"github.com/cubicmc/proton/pkg/rules"
)

// selectTasks walks the normalized version and produces the concrete task
// list: one Client task, one Library task per applicable entry with a
// generic artifact, one Native task per entry with a classifier for the
// current OS family, and one Asset task per asset-index object. Ordering is
// stable so category totals are fixed before any task starts.
func (d *MinecraftDownloader) selectTasks(ctx context.Context) ([]*entity.DownloadTask, error) {
	v := d.version

	tasks := []*entity.DownloadTask{{
		Name:     v.ID + ".jar",
		URL:      v.Client.URL,
		Dest:     d.ClientJar(),
		SHA1:     v.Client.SHA1,
		Size:     v.Client.Size,
		Category: entity.CategoryClient,
	}}

	for i := range v.Libraries {
		lib := &v.Libraries[i]
		if !rules.Evaluate(lib.Rules, d.platform, d.features) {
			d.log.Debug("Library excluded by rules", slog.String("name", lib.Name))

			continue
		}

		if rel, ok := artifactPath(lib); ok {
			tasks = append(tasks, &entity.DownloadTask{
				Name:     lib.Name,
				URL:      lib.Downloads.Artifact.URL,
				Dest:     filepath.Join(d.root, "libraries", filepath.FromSlash(rel)),
				SHA1:     lib.Downloads.Artifact.SHA1,
				Size:     lib.Downloads.Artifact.Size,
				Category: entity.CategoryLibrary,
			})
		}

		if native, classifier, ok := d.nativeArtifact(lib); ok {
			rel := native.Path
			if rel == "" {
				var err error
				if rel, err = mavenPath(lib.Name, classifier); err != nil {
					return nil, err
				}
			}

			tasks = append(tasks, &entity.DownloadTask{
				Name:           lib.Name + ":" + classifier,
				URL:            native.URL,
				Dest:           filepath.Join(d.root, "libraries", filepath.FromSlash(rel)),
				SHA1:           native.SHA1,
				Size:           native.Size,
				Category:       entity.CategoryNative,
				ExtractExclude: extractExclude(lib),
			})
		}
	}

	if v.AssetIndex != nil {
		assetTasks, err := d.selectAssets(ctx)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, assetTasks...)
	}

	return uniqueByDest(tasks), nil
}

// selectAssets dereferences the asset index (one network fetch), persists
// the document under assets/indexes/ and emits one content-addressed task
// per object, sharded by the first two hex characters of the hash.
func (d *MinecraftDownloader) selectAssets(ctx context.Context) ([]*entity.DownloadTask, error) {
	ref := d.version.AssetIndex

	doc, raw, err := manifest.FetchAssetIndex(ctx, d.fetcher, ref)
	if err != nil {
		return nil, err
	}

	indexDir := filepath.Join(d.root, "assets", "indexes")
	if err := d.fs.MkdirAll(indexDir, 0o755); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(d.fs, filepath.Join(indexDir, ref.ID+".json"), raw, 0o644); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc.Objects))
	for name := range doc.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	objectsDir := filepath.Join(d.root, "assets", "objects")
	tasks := make([]*entity.DownloadTask, 0, len(names))
	for _, name := range names {
		obj := doc.Objects[name]
		if len(obj.Hash) < 2 {
			d.log.Warn("Skipping asset with malformed hash",
				slog.String("name", name), slog.String("hash", obj.Hash))

			continue
		}

		shard := obj.Hash[:2]
		tasks = append(tasks, &entity.DownloadTask{
			Name:     name,
			URL:      d.resourcesURL + "/" + shard + "/" + obj.Hash,
			Dest:     filepath.Join(objectsDir, shard, obj.Hash),
			SHA1:     obj.Hash,
			Size:     obj.Size,
			Category: entity.CategoryAsset,
		})
	}

	return tasks, nil
}

// nativeArtifact looks up the native classifier for the current OS family.
// Classifier selection is independent of rule evaluation: an entry without
// rules can still be native-only for one OS. Old-format classifiers carry a
// "${arch}" placeholder.
func (d *MinecraftDownloader) nativeArtifact(lib *entity.LibraryEntry) (*entity.Artifact, string, bool) {
	classifier, ok := lib.Natives[string(d.platform.OS)]
	if !ok || lib.Downloads == nil {
		return nil, "", false
	}
	classifier = strings.ReplaceAll(classifier, "${arch}", d.platform.Arch.Bits())

	art, ok := lib.Downloads.Classifiers[classifier]
	if !ok || art == nil {
		return nil, "", false
	}

	return art, classifier, true
}

// artifactPath returns the repository-relative path of a library's generic
// artifact: the published path when present, otherwise derived from the
// maven coordinate.
func artifactPath(lib *entity.LibraryEntry) (string, bool) {
	if lib.Downloads == nil || lib.Downloads.Artifact == nil {
		return "", false
	}
	if lib.Downloads.Artifact.Path != "" {
		return lib.Downloads.Artifact.Path, true
	}

	rel, err := mavenPath(lib.Name, "")
	if err != nil {
		return "", false
	}

	return rel, true
}

// mavenPath derives the repository-style path for a "group:artifact:version"
// coordinate: <group-path>/<artifact>/<version>/<artifact>-<version>[-<classifier>].jar.
func mavenPath(name, classifier string) (string, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed library coordinate %q", name)
	}

	group, artifact, version := parts[0], parts[1], parts[2]
	file := artifact + "-" + version
	if classifier != "" {
		file += "-" + classifier
	}

	return strings.ReplaceAll(group, ".", "/") + "/" + artifact + "/" + version + "/" + file + ".jar", nil
}

// extractExclude returns the library's own exclusion prefixes; the
// extractor adds the archive-metadata default itself.
func extractExclude(lib *entity.LibraryEntry) []string {
	if lib.Extract == nil {
		return nil
	}

	return lib.Extract.Exclude
}

// uniqueByDest drops tasks whose destination is already claimed, keeping
// the first. Content-addressed assets legitimately repeat when two logical
// names share a hash; the scheduler requires unique destinations.
func uniqueByDest(tasks []*entity.DownloadTask) []*entity.DownloadTask {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if _, dup := seen[t.Dest]; dup {
			continue
		}
		seen[t.Dest] = struct{}{}
		out = append(out, t)
	}

	return out
}
