package statusapi

import (
	"testing"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

type fakeDispatcher struct {
	snapshot   model.ModelStatusSnapshot
	reloadID   string
	reloadOK   bool
	reloadCall int
}

func (f *fakeDispatcher) Snapshot() model.ModelStatusSnapshot {
	return f.snapshot
}

func (f *fakeDispatcher) Reload(id string) bool {
	f.reloadCall++
	f.reloadID = id
	return f.reloadOK
}

func TestStatus_ReturnsDispatcherSnapshot(t *testing.T) {
	snap := model.ModelStatusSnapshot{Entries: []model.ModelEntry{{ID: "vertex-primary", Status: model.HealthHealthy}}}
	s := New(&fakeDispatcher{snapshot: snap})

	got := s.Status()
	if len(got.Entries) != 1 || got.Entries[0].ID != "vertex-primary" {
		t.Errorf("Status() = %+v, want %+v", got, snap)
	}
}

func TestReload_DelegatesToDispatcher(t *testing.T) {
	fake := &fakeDispatcher{reloadOK: true}
	s := New(fake)

	ok := s.Reload("vertex-secondary")
	if !ok {
		t.Error("Reload() = false, want true")
	}
	if fake.reloadID != "vertex-secondary" || fake.reloadCall != 1 {
		t.Errorf("Reload delegated incorrectly: id=%q calls=%d", fake.reloadID, fake.reloadCall)
	}
}

func TestReload_UnknownModelReturnsFalse(t *testing.T) {
	s := New(&fakeDispatcher{reloadOK: false})
	if s.Reload("does-not-exist") {
		t.Error("Reload() = true, want false")
	}
}

func TestOptimize_DoesNotPanic(t *testing.T) {
	s := New(&fakeDispatcher{})
	s.Optimize()
}
