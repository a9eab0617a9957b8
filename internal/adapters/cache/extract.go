package cache

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/zerr"
)

// extractArchive unpacks a tar.gz archive into dst. Entries must stay inside
// dst; anything escaping it or using an unsupported entry type is rejected as
// a corrupt archive.
func extractArchive(src, dst string) error {
	f, err := os.Open(src) //nolint:gosec // Path is inside our staging directory
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer f.Close() //nolint:errcheck // Read-only file

	gz, err := gzip.NewReader(f)
	if err != nil {
		return zerr.Wrap(domain.ErrIntegrity, "archive is not gzip compressed")
	}
	defer gz.Close() //nolint:errcheck // Read-only stream

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create extraction directory")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(domain.ErrIntegrity, "archive is truncated or corrupt")
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return zerr.With(zerr.Wrap(domain.ErrIntegrity, "archive entry escapes extraction root"), "entry", hdr.Name)
		}
		target := filepath.Join(dst, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return zerr.Wrap(err, "failed to create directory")
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			return zerr.With(zerr.Wrap(domain.ErrIntegrity, "archive contains unsupported entry type"), "entry", hdr.Name)
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return zerr.Wrap(err, "failed to create parent directory")
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //nolint:gosec // Target is confined to the extraction root
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	_, err = io.Copy(f, r) //nolint:gosec // Archive size was verified before extraction
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return zerr.Wrap(err, "failed to extract file")
	}
	return nil
}
