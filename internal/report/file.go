package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/nao1215/linkscan/internal/model"
)

// fallbackName is used when the base domain has no letters or digits.
const fallbackName = "linkscan"

// FileWriter saves reports as NDJSON files under a directory.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a FileWriter for dir. An empty dir means the
// current working directory.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// Path returns the file that Write would create for the given name.
func (w *FileWriter) Path(report *model.ScanReport, name string) string {
	if name == "" {
		name = DefaultName(report.BaseDomain)
	}
	return filepath.Join(w.dir, name+".json")
}

// Write saves the report's records to <name>.json, replacing any existing
// file. An empty name is derived from the report's base domain.
// Every failure is returned as *WriteError.
func (w *FileWriter) Write(report *model.ScanReport, name string) (err error) {
	path := w.Path(report, name)

	if w.dir != "" {
		if mkErr := os.MkdirAll(w.dir, 0750); mkErr != nil {
			return &WriteError{Destination: path, Err: mkErr}
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return &WriteError{Destination: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &WriteError{Destination: path, Err: closeErr}
		}
	}()

	if _, err := NewNDJSONWriter(f).Write(report); err != nil {
		return &WriteError{Destination: path, Err: err}
	}
	return nil
}

// DefaultName derives a file name from a base domain by keeping only its
// letters and digits, e.g. "https://example.com" becomes "httpsexamplecom".
func DefaultName(baseDomain string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, baseDomain)
	if name == "" {
		return fallbackName
	}
	return name
}

// IsWriteError reports whether err is or wraps a *WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
