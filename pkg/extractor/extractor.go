// Package extractor unpacks downloaded native archives into the per-version
// natives directory. The directory is scratch space: entries overwrite
// unconditionally and nothing in it is trusted as a cache.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/cubicmc/proton/pkg/common"
)

// Archive is one downloaded native jar plus the entry-name prefixes that
// must not be extracted from it.
type Archive struct {
	Path    string
	Exclude []string
}

// ExtractAll unpacks every archive into destDir. One archive failing never
// prevents extraction of the others; failures are aggregated into the
// returned error once all archives have been processed.
func ExtractAll(fs afero.Fs, archives []Archive, destDir string, log *slog.Logger) error {
	if len(archives) == 0 {
		return nil
	}

	log = log.With(slog.String("item", "Extractor"))

	var errs []error
	for _, archive := range archives {
		if err := extractOne(fs, archive, destDir); err != nil {
			log.Error("Cannot extract native archive",
				slog.String("path", archive.Path), slog.Any("error", err))
			errs = append(errs, err)

			continue
		}

		log.Debug("Extracted native archive", slog.String("path", archive.Path))
	}

	return errors.Join(errs...)
}

func extractOne(fs afero.Fs, archive Archive, destDir string) error {
	f, err := fs.Open(archive.Path)
	if err != nil {
		return fmt.Errorf("cannot open archive %s: %w", archive.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat archive %s: %w", archive.Path, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return &common.MalformedArchiveError{Path: archive.Path, Reason: err.Error()}
	}

	cleanDest := filepath.Clean(destDir)
	for _, entry := range zr.File {
		if excluded(entry.Name, archive.Exclude) {
			continue
		}

		target := filepath.Join(cleanDest, filepath.FromSlash(entry.Name))
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
			return &common.MalformedArchiveError{
				Path:   archive.Path,
				Entry:  entry.Name,
				Reason: "entry escapes destination directory",
			}
		}

		if strings.HasSuffix(entry.Name, "/") {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", target, err)
			}

			continue
		}

		if err := writeEntry(fs, entry, target); err != nil {
			return fmt.Errorf("archive %s: %w", archive.Path, err)
		}
	}

	return nil
}

func writeEntry(fs afero.Fs, entry *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", target, err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("cannot open entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	out, err := fs.Create(target)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()

		return fmt.Errorf("cannot write %s: %w", target, err)
	}

	return out.Close()
}

// metadataPrefix covers archive metadata and signature entries, excluded
// regardless of the library's own policy.
const metadataPrefix = "META-INF/"

func excluded(name string, exclude []string) bool {
	if strings.HasPrefix(name, metadataPrefix) {
		return true
	}
	for _, prefix := range exclude {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}
