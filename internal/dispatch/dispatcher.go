// Package dispatch delivers produced documents as downloadable files.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog/log"

	"pdfdesk/internal/archive"
	fileutil "pdfdesk/internal/file"
	"pdfdesk/internal/pdf"
)

// Strategy selects how several outputs are delivered.
type Strategy string

const (
	// Sequenced writes each output as its own file, one after another.
	Sequenced Strategy = "sequenced"
	// Bundled packs every output into one zip.
	Bundled Strategy = "bundled"
)

const DefaultSpacing = 100 * time.Millisecond

var ErrNoOutputs = errors.New("nothing to deliver")

// Request describes one delivery.
type Request struct {
	TaskID   string
	Strategy Strategy
	// BundleName is the zip file name used by Bundled.
	BundleName string
	// Folder prefixes entry names inside the zip.
	Folder  string
	Outputs []pdf.Output
}

type Options struct {
	// Spacing is the pause between sequenced files.
	Spacing time.Duration
}

type Dispatcher struct {
	store        Store
	spacing      time.Duration
	buildArchive func(ctx context.Context, destZipPath string, entries []archive.Entry) ([]archive.Result, error)
	sleep        func(ctx context.Context, d time.Duration) error
}

func New(store Store, opts Options) *Dispatcher {
	if opts.Spacing < 0 {
		opts.Spacing = 0
	}
	return &Dispatcher{
		store:        store,
		spacing:      opts.Spacing,
		buildArchive: archive.BuildArchive,
		sleep:        sleepCtx,
	}
}

func (d *Dispatcher) Store() Store { return d.store }

// Dispatch writes the outputs of a task and returns the delivered file
// names. On failure nothing of the task is left behind.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]string, error) {
	if len(req.Outputs) == 0 {
		return nil, ErrNoOutputs
	}
	if _, err := d.store.EnsureTaskDir(ctx, req.TaskID); err != nil {
		return nil, err
	}

	var (
		files []File
		err   error
	)
	switch req.Strategy {
	case Bundled:
		files, err = d.bundle(ctx, req)
	default:
		req.Strategy = Sequenced
		files, err = d.sequence(ctx, req)
	}
	if err == nil {
		err = d.store.SaveManifest(ctx, Manifest{
			TaskID:    req.TaskID,
			Strategy:  req.Strategy,
			Files:     files,
			CreatedAt: time.Now(),
		})
	}
	if err != nil {
		if rmErr := d.store.Remove(context.Background(), req.TaskID); rmErr != nil {
			log.Warn().Str("task_id", req.TaskID).Err(rmErr).Msg("cleanup after failed dispatch")
		}
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	log.Info().Str("task_id", req.TaskID).Str("strategy", string(req.Strategy)).Strs("files", names).Msg("outputs delivered")
	return names, nil
}

func (d *Dispatcher) sequence(ctx context.Context, req Request) ([]File, error) {
	files := make([]File, 0, len(req.Outputs))
	for i, out := range req.Outputs {
		if i > 0 && d.spacing > 0 {
			if err := d.sleep(ctx, d.spacing); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest, err := d.store.Path(req.TaskID, out.Name)
		if err != nil {
			return nil, err
		}
		if err := fileutil.CopyAtomic(dest, bytes.NewReader(out.Data)); err != nil {
			return nil, fmt.Errorf("write %s: %w", out.Name, err)
		}
		files = append(files, File{Name: out.Name, Size: int64(len(out.Data))})
	}
	return files, nil
}

func (d *Dispatcher) bundle(ctx context.Context, req Request) ([]File, error) {
	name := req.BundleName
	if name == "" {
		name = req.TaskID + ".zip"
	}
	dest, err := d.store.Path(req.TaskID, name)
	if err != nil {
		return nil, err
	}
	entries := make([]archive.Entry, len(req.Outputs))
	for i, out := range req.Outputs {
		entryName := out.Name
		if req.Folder != "" {
			entryName = path.Join(req.Folder, out.Name)
		}
		entries[i] = archive.Entry{Name: entryName, Data: out.Data}
	}

	results, err := d.buildArchive(ctx, dest, entries)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Err != "" {
			return nil, fmt.Errorf("bundle %s: %s", r.Filename, r.Err)
		}
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}
	return []File{{Name: name, Size: info.Size()}}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
