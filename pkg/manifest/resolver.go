// Package manifest resolves a version id into a flat, self-contained
// NormalizedVersion: it looks the id up in the top-level manifest, follows
// the inherits-from chain to its root and merges the descriptors with
// child-overrides-parent precedence.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cubicmc/proton/pkg/common"
	"github.com/cubicmc/proton/pkg/entity"
	"github.com/cubicmc/proton/pkg/httpclient"
)

const (
	// DefaultManifestURL is the well-known origin of the id to
	// descriptor-url mapping.
	DefaultManifestURL = "https://manifest.cubicmc.me/manifest"

	// DefaultResourcesURL is the content-addressed asset store.
	DefaultResourcesURL = "https://resources.download.minecraft.net"

	// maxChainDepth cuts off unterminated inheritance chains that are not
	// plain cycles (those are caught by the visited set first).
	maxChainDepth = 16
)

type Resolver struct {
	fetcher     httpclient.Fetcher
	manifestURL string
	log         *slog.Logger
}

type Option func(*Resolver)

func WithManifestURL(url string) Option {
	return func(r *Resolver) {
		r.manifestURL = url
	}
}

func NewResolver(fetcher httpclient.Fetcher, log *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		manifestURL: DefaultManifestURL,
		log:         log.With(slog.String("item", "Resolver")),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Manifest fetches the top-level version manifest.
func (r *Resolver) Manifest(ctx context.Context) (*entity.VersionManifest, error) {
	var man entity.VersionManifest
	if _, err := httpclient.FetchJSON(ctx, r.fetcher, r.manifestURL, &man); err != nil {
		return nil, fmt.Errorf("cannot fetch version manifest: %w", err)
	}

	return &man, nil
}

// Resolve produces the NormalizedVersion for a version id. The inheritance
// chain is fetched iteratively, child first, with a visited-id set guarding
// against cycles; the fetched descriptors are then folded root-down so every
// child overrides its parent.
func (r *Resolver) Resolve(ctx context.Context, versionID string) (*entity.NormalizedVersion, error) {
	man, err := r.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	entry := man.Entry(versionID)
	if entry == nil {
		return nil, &common.VersionNotFoundError{ID: versionID}
	}

	// Chain is ordered child first. chain[0] is the requested version.
	var (
		chain   []*entity.VersionDescriptor
		visited = make(map[string]struct{})
		rawDocs [][]byte
	)

	for url, id := entry.URL, versionID; ; {
		if _, seen := visited[id]; seen {
			return nil, &common.MalformedChainError{ID: id, Chain: chainIDs(chain)}
		}
		if len(chain) >= maxChainDepth {
			return nil, &common.MalformedChainError{ID: id, Chain: chainIDs(chain)}
		}
		visited[id] = struct{}{}

		var desc entity.VersionDescriptor
		raw, err := httpclient.FetchJSON(ctx, r.fetcher, url, &desc)
		if err != nil {
			return nil, fmt.Errorf("cannot fetch descriptor for %s: %w", id, err)
		}

		r.log.Debug("Fetched descriptor",
			slog.String("id", desc.ID), slog.String("inherits_from", desc.InheritsFrom))

		chain = append(chain, &desc)
		rawDocs = append(rawDocs, raw)

		if desc.InheritsFrom == "" {
			break
		}

		parent := man.Entry(desc.InheritsFrom)
		if parent == nil {
			return nil, &common.VersionNotFoundError{ID: desc.InheritsFrom}
		}
		url, id = parent.URL, desc.InheritsFrom
	}

	normalized := merge(chain)
	normalized.ID = versionID
	normalized.Raw = rawDocs[0]

	if normalized.Client == nil {
		return nil, &common.ParseError{
			Context: fmt.Sprintf("version %s", versionID),
			Cause:   fmt.Errorf("no client download in resolved descriptor"),
		}
	}

	return normalized, nil
}

func chainIDs(chain []*entity.VersionDescriptor) []string {
	ids := make([]string, 0, len(chain))
	for _, d := range chain {
		ids = append(ids, d.ID)
	}

	return ids
}

// merge folds a child-first chain from the root down. Scalar fields take
// the child's value when present, the parent's otherwise; library sequences
// concatenate child-after-parent with same-name child entries replacing the
// parent's at its first-seen position.
func merge(chain []*entity.VersionDescriptor) *entity.NormalizedVersion {
	out := &entity.NormalizedVersion{}

	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]

		if d.Type != "" {
			out.Type = d.Type
		}
		if d.ReleaseTime != "" {
			out.ReleaseTime = d.ReleaseTime
		}
		if d.MainClass != "" {
			out.MainClass = d.MainClass
		}
		if d.JavaVersion != nil {
			out.JavaVersion = d.JavaVersion.MajorVersion
		}
		if d.AssetIndex != nil {
			out.AssetIndex = d.AssetIndex
		}
		if d.Downloads != nil {
			if d.Downloads.Client != nil {
				out.Client = d.Downloads.Client
			}
			if d.Downloads.Server != nil {
				out.Server = d.Downloads.Server
			}
		}
		if d.Arguments != nil {
			if len(d.Arguments.Game) > 0 {
				out.Arguments.Game = d.Arguments.Game
			}
			if len(d.Arguments.JVM) > 0 {
				out.Arguments.JVM = d.Arguments.JVM
			}
		}

		out.Libraries = mergeLibraries(out.Libraries, d.Libraries)
	}

	return out
}

// mergeLibraries appends child entries after the parent sequence. A child
// entry with the same identifying name (group:artifact, version ignored)
// replaces the parent's entry in place so the flattened list holds each
// library exactly once, first-seen order preserved.
func mergeLibraries(parent, child []entity.LibraryEntry) []entity.LibraryEntry {
	merged := make([]entity.LibraryEntry, len(parent))
	copy(merged, parent)

	index := make(map[string]int, len(merged))
	for i := range merged {
		index[libraryKey(merged[i].Name)] = i
	}

	for _, lib := range child {
		key := libraryKey(lib.Name)
		if at, seen := index[key]; seen {
			merged[at] = lib

			continue
		}
		index[key] = len(merged)
		merged = append(merged, lib)
	}

	return merged
}

// libraryKey strips the version (and any classifier) from a maven-style
// coordinate so "org.lwjgl:lwjgl:3.3.2" and "org.lwjgl:lwjgl:3.3.3" collide.
func libraryKey(name string) string {
	parts := strings.SplitN(name, ":", 3)
	if len(parts) < 2 {
		return name
	}

	return parts[0] + ":" + parts[1]
}

// FetchAssetIndex dereferences an asset index reference into the name to
// hash/size mapping, returning the raw document for persistence.
func FetchAssetIndex(ctx context.Context, fetcher httpclient.Fetcher, ref *entity.AssetIndexRef) (*entity.AssetIndexDoc, []byte, error) {
	var doc entity.AssetIndexDoc
	raw, err := httpclient.FetchJSON(ctx, fetcher, ref.URL, &doc)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot fetch asset index %s: %w", ref.ID, err)
	}

	return &doc, raw, nil
}

// ResolveVersionData is the one-call entry point: resolve a version id with
// a fresh HTTP handle and default origins.
func ResolveVersionData(ctx context.Context, versionID string) (*entity.NormalizedVersion, error) {
	return NewResolver(httpclient.New(), slog.Default()).Resolve(ctx, versionID)
}
