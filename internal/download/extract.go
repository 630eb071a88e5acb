package download

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "crash/pkg/errors"
)

// ArchiveType is the container format of a downloaded asset.
type ArchiveType string

const (
	ArchiveTarGz ArchiveType = "tar.gz"
	ArchiveZip   ArchiveType = "zip"
	ArchiveGz    ArchiveType = "gz"
	ArchiveRaw   ArchiveType = "raw"
)

// archiveSuffixes is ordered so that .tar.gz wins over .gz.
var archiveSuffixes = []struct {
	suffix string
	typ    ArchiveType
}{
	{".tar.gz", ArchiveTarGz},
	{".tgz", ArchiveTarGz},
	{".zip", ArchiveZip},
	{".gz", ArchiveGz},
}

// InferArchiveType derives the archive type from a file name.
func InferArchiveType(name string) ArchiveType {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.typ
		}
	}
	return ArchiveRaw
}

// StripArchiveSuffix returns name without its compression suffix, which is the
// file name an archive installs as: geoip.dat.tar.gz becomes geoip.dat.
func StripArchiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return name[:len(name)-len(s.suffix)]
		}
	}
	return name
}

// Extract unpacks archive into dir, creating dir if needed. Raw files are
// copied in under their own name and single-file .gz archives under the
// stripped name.
func Extract(archive, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	base := filepath.Base(archive)
	switch InferArchiveType(base) {
	case ArchiveTarGz:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", base, err)
		}
		defer gr.Close()
		return extractTar(gr, dir)
	case ArchiveZip:
		info, err := f.Stat()
		if err != nil {
			return err
		}
		zr, err := zip.NewReader(f, info.Size())
		if err != nil {
			return fmt.Errorf("%s: %w", base, err)
		}
		for _, file := range zr.File {
			if err := extractZipEntry(file, dir); err != nil {
				return err
			}
		}
		return nil
	case ArchiveGz:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", base, err)
		}
		defer gr.Close()
		return writeFile(filepath.Join(dir, StripArchiveSuffix(base)), gr, 0o644)
	default:
		return writeFile(filepath.Join(dir, base), f, 0o644)
	}
}

// FlattenSingleDir moves the contents of dir's only child directory up into
// dir. Dashboard bundles ship wrapped in one top-level folder.
func FlattenSingleDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	// Move the wrapper aside first so a child sharing its name cannot collide.
	inner := filepath.Join(dir, ".flatten-"+entries[0].Name())
	if err := os.Rename(filepath.Join(dir, entries[0].Name()), inner); err != nil {
		return err
	}
	children, err := os.ReadDir(inner)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(inner, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return err
		}
	}
	return os.Remove(inner)
}

func extractZipEntry(file *zip.File, baseDir string) error {
	cleanName := filepath.Clean(file.Name)
	if cleanName == "." {
		return nil
	}
	targetPath, err := safeJoin(baseDir, cleanName)
	if err != nil {
		return err
	}
	if file.FileInfo().IsDir() {
		return os.MkdirAll(targetPath, 0o755)
	}

	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o755
	}
	return writeFile(targetPath, rc, mode)
}

func extractTar(r io.Reader, baseDir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		cleanName := filepath.Clean(header.Name)
		if cleanName == "." {
			continue
		}
		targetPath, err := safeJoin(baseDir, cleanName)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(targetPath, tr, fs.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader, tar.TypeSymlink, tar.TypeLink:
			// Release bundles carry no links the tool relies on.
		default:
			return fmt.Errorf("%s: %w: tar entry type %d", header.Name, pkgerrors.ErrUnsupportedArchive, header.Typeflag)
		}
	}
}

func writeFile(path string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func safeJoin(baseDir, rel string) (string, error) {
	target := filepath.Join(baseDir, rel)
	baseDirClean := filepath.Clean(baseDir)
	targetClean := filepath.Clean(target)
	if !strings.HasPrefix(targetClean, baseDirClean+string(os.PathSeparator)) && targetClean != baseDirClean {
		return "", fmt.Errorf("invalid path traversal detected: %s", rel)
	}
	return targetClean, nil
}
