package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/docpen/internal/stream"
)

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, status := range []JobStatus{StatusStreaming, StatusCompleted} {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(status)

		if job.GetStatus() != status {
			t.Errorf("expected status %q, got %q", status, job.GetStatus())
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		StatusQueued:     false,
		StatusStreaming:  false,
		StatusCompleted:  true,
		StatusCancelled:  true,
		StatusAnchorLost: true,
		StatusFailed:     true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s: expected Terminal()=%v, got %v", status, want, got)
		}
	}
}

func TestJobStatus_FromSession(t *testing.T) {
	cases := map[stream.Status]JobStatus{
		stream.StatusCompleted:  StatusCompleted,
		stream.StatusCancelled:  StatusCancelled,
		stream.StatusAnchorLost: StatusAnchorLost,
		stream.StatusFailed:     StatusFailed,
		stream.StatusStreaming:  StatusStreaming,
	}
	for in, want := range cases {
		if got := jobStatus(in); got != want {
			t.Errorf("jobStatus(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("anchor lost")
	job.AddError("generation failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "anchor lost" {
		t.Errorf("expected first error %q, got %q", "anchor lost", snap.Progress.Errors[0])
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if snap.Progress.Tokens != 0 || snap.Text != "" {
		t.Errorf("expected empty progress without a session, got %+v", snap)
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", DocID: "doc-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if n := len(store.ForDoc("doc-1")); n != 1 {
		t.Errorf("expected 1 job for doc-1, got %d", n)
	}
	if n := len(store.ForDoc("doc-2")); n != 0 {
		t.Errorf("expected no jobs for doc-2, got %d", n)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusStreaming, UpdatedAt: time.Now()}
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", Status: StatusCompleted, UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected running job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 jobs left, got %d", store.Len())
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
