package player

import "testing"

func TestRegistry_put_get_delete(t *testing.T) {
	r := NewInMemoryRegistry()

	if _, ok := r.Get("p-1"); ok {
		t.Fatal("empty registry returned a binding")
	}

	b := &Binding{ID: "p-1", ElementID: "el-1"}
	r.Put(b)

	got, ok := r.Get("p-1")
	if !ok || got != b {
		t.Fatal("stored binding not returned")
	}

	r.Delete("p-1")
	if _, ok := r.Get("p-1"); ok {
		t.Fatal("deleted binding still present")
	}
}

func TestRegistry_by_element(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Put(&Binding{ID: "p-1", ElementID: "el-1"})
	r.Put(&Binding{ID: "p-2"})

	got, ok := r.ByElement("el-1")
	if !ok || got.ID != "p-1" {
		t.Fatalf("ByElement(el-1) = %v, %v", got, ok)
	}

	if _, ok := r.ByElement("el-2"); ok {
		t.Error("unknown element matched a binding")
	}

	// Bindings without an element must never match the empty query.
	if _, ok := r.ByElement(""); ok {
		t.Error("empty element id matched a binding")
	}
}

func TestRegistry_active_session_count(t *testing.T) {
	r := NewInMemoryRegistry()

	live := newTestSession(&fakeEngine{kind: EngineHLS}, nil)
	disposed := newTestSession(&fakeEngine{kind: EngineHLS}, nil)
	disposed.Dispose()

	r.Put(&Binding{ID: "p-1", session: live})
	r.Put(&Binding{ID: "p-2", session: disposed})
	r.Put(&Binding{ID: "p-3"})

	if n := r.ActiveSessionCount(); n != 1 {
		t.Errorf("ActiveSessionCount = %d, want 1", n)
	}
}
