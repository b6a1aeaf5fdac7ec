package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfdesk/internal/task"
)

func TestMetricsFollowRegistry(t *testing.T) {
	reg := task.NewRegistryWithOptions(task.Options{DisableEviction: true})
	m := New(nil)
	detach := m.Attach(reg)
	defer detach()

	a, err := reg.AddTask(task.NewTask{Type: task.TypePdfMerge, Filename: "a.pdf"})
	require.NoError(t, err)
	b, err := reg.AddTask(task.NewTask{Type: task.TypePdfSplit, Filename: "b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeTasks))

	require.NoError(t, reg.UpdateTask(a, task.Patch{Result: []string{"x_group1.pdf", "x_group2.pdf"}, Progress: task.IntPtr(100)}))
	require.NoError(t, reg.CancelTask(b))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeTasks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("pdf-merge", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("pdf-split", "cancelled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outputsTotal.WithLabelValues("pdf-merge")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.taskDuration))

	// terminal updates after the fact are rejected and not counted twice
	_ = reg.UpdateTaskProgress(task.Progress{TaskID: a, Progress: 100})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("pdf-merge", "completed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.Observe(task.Event{Kind: task.EventAdded, ActiveCount: 3})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "pdfdesk_active_tasks 3")
}
