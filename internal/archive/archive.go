package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pdfdesk/internal/file"
)

// Entry is one named buffer to place into the archive.
type Entry struct {
	Name string
	Data []byte
}

// Result describes outcome of writing a single entry into the zip
type Result struct {
	Filename string
	Err      string
}

// BuildArchive writes entries as files into a zip at destZipPath. Entries may
// carry a slash separated folder prefix. It always returns a results slice of
// the same length as entries. A failed entry is reported in its Result and
// omitted from the archive. The zip only appears at destZipPath once complete.
func BuildArchive(ctx context.Context, destZipPath string, entries []Entry) ([]Result, error) {
	if len(entries) == 0 {
		return nil, errors.New("no entries provided")
	}

	zipFile, zipWriter, err := prepareZip(destZipPath)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(entries))
	used := make(map[string]int, len(entries))
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zipWriter.Close()
			zipFile.Abort()
			return results, err
		}
		results[i] = processEntry(zipWriter, entry, uniqueName(used, deriveFilename(entry.Name, i)))
	}

	if err := zipWriter.Close(); err != nil {
		zipFile.Abort()
		log.Error().Err(err).Msg("closing zip writer failed")
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip file failed")
		return results, fmt.Errorf("close zip file: %w", err)
	}
	return results, nil
}

// Write streams entries into w as a zip. It stops at the first failing entry.
func Write(w io.Writer, entries []Entry) error {
	zipWriter := zip.NewWriter(w)
	used := make(map[string]int, len(entries))
	for i, entry := range entries {
		res := processEntry(zipWriter, entry, uniqueName(used, deriveFilename(entry.Name, i)))
		if res.Err != "" {
			_ = zipWriter.Close()
			return fmt.Errorf("%s: %s", res.Filename, res.Err)
		}
	}
	return zipWriter.Close()
}

// prepareZip creates an atomic destination file and a zip writer for it.
func prepareZip(destZipPath string) (*file.AtomicWriter, *zip.Writer, error) {
	zipFile, err := file.NewAtomicWriter(destZipPath)
	if err != nil {
		return nil, nil, err
	}
	return zipFile, zip.NewWriter(zipFile), nil
}

// processEntry writes a single buffer into the zip, returning the Result.
func processEntry(zipWriter *zip.Writer, entry Entry, filename string) Result {
	result := Result{Filename: filename}

	header := &zip.FileHeader{Name: filename, Method: zip.Deflate, Modified: time.Now()}
	zipEntryWriter, err := zipWriter.CreateHeader(header)
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("entry", filename).Err(err).Msg("zip entry create failed")
		return result
	}
	if _, err := zipEntryWriter.Write(entry.Data); err != nil {
		result.Err = err.Error()
		log.Warn().Str("entry", filename).Err(err).Msg("write into zip failed")
		return result
	}
	return result
}

// deriveFilename turns an entry name into a safe relative zip path or falls
// back to index-based naming.
func deriveFilename(name string, index int) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	cleaned := strings.TrimLeft(path.Clean("/"+trimmed), "/")
	if trimmed == "" || cleaned == "" || cleaned == "." {
		return fmt.Sprintf("file-%d", index+1)
	}
	return cleaned
}

// uniqueName suffixes repeated names: a.pdf, a-2.pdf, a-3.pdf.
func uniqueName(used map[string]int, name string) string {
	used[name]++
	n := used[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	return uniqueName(used, candidate)
}
