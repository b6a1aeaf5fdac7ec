package dispatch

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfdesk/internal/archive"
	"pdfdesk/internal/pdf"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *[]time.Duration) {
	t.Helper()
	d := New(NewFileStore(t.TempDir()), Options{Spacing: DefaultSpacing})
	var pauses []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		pauses = append(pauses, dur)
		return ctx.Err()
	}
	return d, &pauses
}

func outputs(names ...string) []pdf.Output {
	out := make([]pdf.Output, len(names))
	for i, n := range names {
		out[i] = pdf.Output{Name: n, Data: []byte("data of " + n)}
	}
	return out
}

func TestDispatchSingleOutput(t *testing.T) {
	d, pauses := newTestDispatcher(t)

	names, err := d.Dispatch(context.Background(), Request{TaskID: "task_1", Strategy: Sequenced, Outputs: outputs("report.pdf")})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf"}, names)
	assert.Empty(t, *pauses)

	path, err := d.Store().Path("task_1", "report.pdf")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data of report.pdf", string(data))
}

func TestDispatchSequencedSpacesFiles(t *testing.T) {
	d, pauses := newTestDispatcher(t)

	names, err := d.Dispatch(context.Background(), Request{
		TaskID:   "task_1",
		Strategy: Sequenced,
		Outputs:  outputs("r_group1.pdf", "r_group2.pdf", "r_group3.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r_group1.pdf", "r_group2.pdf", "r_group3.pdf"}, names)
	assert.Equal(t, []time.Duration{DefaultSpacing, DefaultSpacing}, *pauses)

	m, err := d.Store().LoadManifest(context.Background(), "task_1")
	require.NoError(t, err)
	assert.Equal(t, Sequenced, m.Strategy)
	require.Len(t, m.Files, 3)
	assert.Equal(t, int64(len("data of r_group1.pdf")), m.Files[0].Size)
}

func TestDispatchBundled(t *testing.T) {
	d, _ := newTestDispatcher(t)

	names, err := d.Dispatch(context.Background(), Request{
		TaskID:     "task_1",
		Strategy:   Bundled,
		BundleName: "scan_img.zip",
		Folder:     "scan_img",
		Outputs:    outputs("page_001.png", "page_002.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"scan_img.zip"}, names)

	path, _ := d.Store().Path("task_1", "scan_img.zip")
	reader, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()
	var entries []string
	for _, f := range reader.File {
		entries = append(entries, f.Name)
	}
	assert.Equal(t, []string{"scan_img/page_001.png", "scan_img/page_002.png"}, entries)
}

func TestDispatchFailureLeavesNothing(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.buildArchive = func(ctx context.Context, dest string, entries []archive.Entry) ([]archive.Result, error) {
		return nil, errors.New("disk full")
	}

	_, err := d.Dispatch(context.Background(), Request{TaskID: "task_1", Strategy: Bundled, Outputs: outputs("a.pdf", "b.pdf")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = d.Store().LoadManifest(context.Background(), "task_1")
	assert.ErrorIs(t, err, ErrNotFound)
	dir := filepath.Dir(mustPath(t, d, "task_1", "a.pdf"))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDispatchStopsWhenCancelledBetweenFiles(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := d.Dispatch(ctx, Request{TaskID: "task_1", Outputs: outputs("a.pdf", "b.pdf")})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(mustPath(t, d, "task_1", "a.pdf"))
	assert.True(t, os.IsNotExist(statErr), "first file must be cleaned up")
}

func TestDispatchRejectsUnsafeNames(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), Request{TaskID: "task_1", Outputs: outputs("../escape.pdf")})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = d.Dispatch(context.Background(), Request{TaskID: "../x", Outputs: outputs("a.pdf")})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = d.Dispatch(context.Background(), Request{TaskID: "task_1"})
	assert.ErrorIs(t, err, ErrNoOutputs)
}

func mustPath(t *testing.T, d *Dispatcher, taskID, name string) string {
	t.Helper()
	p, err := d.Store().Path(taskID, name)
	require.NoError(t, err)
	return p
}
