package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const appDirPerm os.FileMode = 0o750

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned data dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// AtomicWriter writes into a temporary file next to the destination and
// moves it into place on Close. Abort discards everything written so far.
type AtomicWriter struct {
	filename string
	tempFile *os.File
	done     bool
}

// NewAtomicWriter prepares an atomic write of filename, creating its directory.
func NewAtomicWriter(filename string) (*AtomicWriter, error) {
	if filename == "" {
		return nil, errors.New("empty filename")
	}
	dir := filepath.Dir(filename)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	return &AtomicWriter{filename: filename, tempFile: tempFile}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.tempFile.Write(p)
}

// Close syncs the temporary file and renames it over the destination.
func (w *AtomicWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	tmpName := w.tempFile.Name()

	// ensure data hits disk
	if err := w.tempFile.Sync(); err != nil {
		_ = w.tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := w.tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	// remove existing file to avoid permission issues on Windows
	if _, err := os.Stat(w.filename); err == nil {
		// ignore error; if remove fails, rename may still succeed on POSIX
		_ = os.Remove(w.filename)
	}
	if err := os.Rename(tmpName, w.filename); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

// Abort drops the temporary file. The destination is left untouched.
func (w *AtomicWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tempFile.Close()
	_ = os.Remove(w.tempFile.Name())
}

// WriteJSONAtomic marshals the value and atomically writes it to filename.
func WriteJSONAtomic(filename string, v any) error {
	w, err := NewAtomicWriter(filename)
	if err != nil {
		return err
	}
	jsonEncoder := json.NewEncoder(w)
	jsonEncoder.SetEscapeHTML(true)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(v); err != nil {
		w.Abort()
		return fmt.Errorf("encode json: %w", err)
	}
	return w.Close()
}

// CopyAtomic writes data provided by the reader to the destination file atomically.
func CopyAtomic(filename string, reader io.Reader) error {
	w, err := NewAtomicWriter(filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, reader); err != nil {
		w.Abort()
		return fmt.Errorf("copy to temp: %w", err)
	}
	return w.Close()
}

// ReadJSON decodes filename into v.
func ReadJSON(filename string, v any) error {
	data, err := os.ReadFile(filename) //nolint:gosec // path is constructed by the application
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
