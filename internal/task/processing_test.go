package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, r *Registry, id string, want Status) Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := r.GetTaskByID(id); ok && got.Status == want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := r.GetTaskByID(id)
	t.Fatalf("timeout waiting for %s, last state %+v", want, got)
	return Task{}
}

func newTestRunner(t *testing.T, maxConcurrent int) (*Registry, *Runner) {
	t.Helper()
	r := NewRegistryWithOptions(Options{DisableEviction: true})
	rn := NewRunner(r, RunnerOptions{MaxConcurrentTasks: maxConcurrent})
	t.Cleanup(rn.Close)
	return r, rn
}

func TestRunnerCompletesTaskWithResult(t *testing.T) {
	r, rn := newTestRunner(t, 1)
	id := addPending(t, r, TypePdfSplit)

	var seen []int
	unsubscribe := r.Subscribe(func(evt Event) {
		if evt.Task.ID == id && evt.Kind == EventProgress {
			seen = append(seen, evt.Task.Progress)
		}
	})
	defer unsubscribe()

	err := rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
		for i := 1; i <= 4; i++ {
			progress.OnUnit(UnitEvent{Done: i, Total: 4, Step: "range"})
		}
		return []string{"out_part1.pdf", "out_part2.pdf"}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !rn.WaitAll(context.Background()) {
		t.Fatalf("runner did not finish")
	}

	got, _ := r.GetTaskByID(id)
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d", got.Status, got.Progress)
	}
	if len(got.Result) != 2 {
		t.Fatalf("expected 2 results, got %v", got.Result)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress not monotonic: %v", seen)
		}
	}
	if seen[len(seen)-1] != DefaultProgressCeiling {
		t.Fatalf("executor progress should stop at the ceiling, got %v", seen)
	}
}

func TestRunnerFunnelsErrors(t *testing.T) {
	r, rn := newTestRunner(t, 1)
	id := addPending(t, r, TypePdfMerge)

	_ = rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
		progress.OnUnit(UnitEvent{Done: 1, Total: 2})
		return nil, errors.New("page 3 of b.pdf is corrupt")
	})
	rn.WaitAll(context.Background())

	got, _ := r.GetTaskByID(id)
	if got.Status != StatusError || got.Error != "page 3 of b.pdf is corrupt" {
		t.Fatalf("unexpected task state %+v", got)
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	r, rn := newTestRunner(t, 1)
	id := addPending(t, r, TypePdfMerge)

	_ = rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
		panic("partition invariant violated")
	})
	rn.WaitAll(context.Background())

	got, _ := r.GetTaskByID(id)
	if got.Status != StatusError {
		t.Fatalf("expected error status after panic, got %s", got.Status)
	}
}

func TestRunnerCancellationDiscardsResult(t *testing.T) {
	r, rn := newTestRunner(t, 1)
	id := addPending(t, r, TypePdfSplit)
	started := make(chan struct{})

	_ = rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
		close(started)
		<-ctx.Done()
		return []string{"late.pdf"}, nil
	})
	<-started
	if err := r.CancelTask(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rn.WaitAll(context.Background())

	got, _ := r.GetTaskByID(id)
	if got.Status != StatusCancelled || len(got.Result) != 0 {
		t.Fatalf("cancelled task must keep status and drop result, got %+v", got)
	}
}

func TestRunnerHandsDiscardedOutputsBack(t *testing.T) {
	r := NewRegistryWithOptions(Options{DisableEviction: true})
	discarded := make(map[string][]string)
	rn := NewRunner(r, RunnerOptions{
		MaxConcurrentTasks: 1,
		OnDiscard: func(taskID string, result []string) {
			discarded[taskID] = result
		},
	})
	t.Cleanup(rn.Close)
	id := addPending(t, r, TypePdfMerge)

	// outputs are already written when the cancel lands
	_ = rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
		if err := r.CancelTask(id); err != nil {
			t.Errorf("cancel: %v", err)
		}
		return []string{"merged.pdf"}, nil
	})
	rn.WaitAll(context.Background())

	got, _ := r.GetTaskByID(id)
	if got.Status != StatusCancelled || len(got.Result) != 0 {
		t.Fatalf("expected cancelled task without result, got %+v", got)
	}
	if files := discarded[id]; len(files) != 1 || files[0] != "merged.pdf" {
		t.Fatalf("expected merged.pdf handed to the discard hook, got %v", discarded)
	}
}

func TestRunnerSkipsTaskCancelledWhileQueued(t *testing.T) {
	r, rn := newTestRunner(t, 1)
	blocker := make(chan struct{})
	first := addPending(t, r, TypePdfMerge)
	second := addPending(t, r, TypePdfMerge)

	_ = rn.Submit(first, func(ctx context.Context, progress *Bridge) ([]string, error) {
		<-blocker
		return nil, nil
	})
	waitForStatus(t, r, first, StatusProcessing)
	if !rn.IsBusy() {
		t.Fatalf("expected runner to be busy")
	}

	ran := false
	_ = rn.Submit(second, func(ctx context.Context, progress *Bridge) ([]string, error) {
		ran = true
		return nil, nil
	})
	_ = r.CancelTask(second)
	close(blocker)
	rn.WaitAll(context.Background())

	if ran {
		t.Fatalf("cancelled queued task must not run")
	}
	if got, _ := r.GetTaskByID(first); got.Status != StatusCompleted {
		t.Fatalf("expected first completed, got %s", got.Status)
	}
}

func TestRunnerInterleavesConcurrentJobs(t *testing.T) {
	r, rn := newTestRunner(t, 3)
	ids := []string{addPending(t, r, TypePdfMerge), addPending(t, r, TypePdfSplit), addPending(t, r, TypePdfToImage)}
	for _, id := range ids {
		_ = rn.Submit(id, func(ctx context.Context, progress *Bridge) ([]string, error) {
			for i := 1; i <= 10; i++ {
				progress.OnUnit(UnitEvent{Done: i, Total: 10})
				time.Sleep(time.Millisecond)
			}
			return []string{progress.TaskID()}, nil
		})
	}
	rn.WaitAll(context.Background())
	for _, id := range ids {
		got, _ := r.GetTaskByID(id)
		if got.Status != StatusCompleted || got.Result[0] != id {
			t.Fatalf("unexpected state for %s: %+v", id, got)
		}
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("expected no active tasks")
	}
}

func TestRunnerSubmitUnknownTask(t *testing.T) {
	_, rn := newTestRunner(t, 1)
	if err := rn.Submit("missing", nil); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		done, total, ceiling, want int
	}{
		{0, 4, 100, 0},
		{1, 4, 100, 25},
		{1, 3, 100, 33},
		{2, 3, 100, 67},
		{3, 3, 95, 95},
		{5, 3, 100, 100},
		{1, 0, 100, 0},
	}
	for _, c := range cases {
		if got := Percent(c.done, c.total, c.ceiling); got != c.want {
			t.Fatalf("Percent(%d,%d,%d)=%d want %d", c.done, c.total, c.ceiling, got, c.want)
		}
	}
}
