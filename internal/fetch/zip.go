package fetch

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// safeDestPath resolves an archive entry name under destDir, rejecting
// entries that would escape it.
func safeDestPath(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}
	return dest, nil
}

// writeEntry extracts one archive entry under destDir. Directory entries
// only create the directory; the returned path is empty for those.
func writeEntry(f *zip.File, destDir string) (string, error) {
	dest, err := safeDestPath(destDir, f.Name)
	if err != nil {
		return "", err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return dest, nil
}

// ExtractZIP extracts every entry of the archive into destDir and returns
// the extracted file paths. Directory entries are created but not listed.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := writeEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// ExtractZIPFile extracts the named entry from the archive into destDir.
func ExtractZIPFile(zipPath, fileName, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name == fileName {
			return writeEntry(f, destDir)
		}
	}
	return "", eris.Errorf("zip: file %q not found in archive", fileName)
}

// ExtractZIPSingle extracts the lone file from an archive that holds
// exactly one, the shape the CSLB master list ships in. Directory entries
// do not count toward the total.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var only *zip.File
	files := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		only = f
		files++
	}
	if files != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file, got %d", files)
	}
	return writeEntry(only, destDir)
}
