package player

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAdapter(doc *HostDocument, attempts int) *DefaultElementAdapter {
	return NewDefaultElementAdapter(doc, nil, nil, attempts, time.Millisecond)
}

func TestAdapter_adopt_marks_and_clears_source(t *testing.T) {
	doc := NewHostDocument()
	doc.Register(NewElement("el-1", map[string]string{
		"src":    "/assets/original.mp4",
		"poster": "/assets/poster.jpg",
	}))
	a := newTestAdapter(doc, 3)

	rec, err := a.Adopt(context.Background(), "el-1", "My video")
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}

	if !rec.OwnedByThisSystem {
		t.Error("record should mark ownership")
	}
	if rec.OriginalAttributes["src"] != "/assets/original.mp4" {
		t.Errorf("original attributes not captured: %v", rec.OriginalAttributes)
	}

	el := rec.Element
	if _, ok := el.Attr("src"); ok {
		t.Error("host src must be cleared so native loading cannot race the engine")
	}
	if _, ok := el.Attr("poster"); ok {
		t.Error("host poster must be cleared")
	}
	if !el.Adopted() {
		t.Error("adoption marker missing")
	}
	if w, _ := el.Style("width"); w != "100%" {
		t.Errorf("width style = %q, want 100%%", w)
	}
	if el.Overlay() == nil || el.Toggle() == nil {
		t.Error("overlay and toggle control must be injected")
	}
	if el.Overlay().Title != "My video" {
		t.Errorf("overlay title = %q", el.Overlay().Title)
	}
}

func TestAdapter_adopt_idempotent(t *testing.T) {
	doc := NewHostDocument()
	doc.Register(NewElement("el-1", nil))
	a := newTestAdapter(doc, 3)

	first, err := a.Adopt(context.Background(), "el-1", "Title")
	if err != nil {
		t.Fatalf("first Adopt: %v", err)
	}
	second, err := a.Adopt(context.Background(), "el-1", "Title")
	if err != nil {
		t.Fatalf("second Adopt: %v", err)
	}

	if first != second {
		t.Error("second adoption must return the existing record, not a new one")
	}

	el, _ := doc.Lookup("el-1")
	if el.Overlay() == nil || el.Toggle() == nil {
		t.Fatal("controls missing")
	}
	// Exactly one overlay/toggle pair exists; ensureOverlay updates in place.
	a.UpdateOverlay(el, "Title", "720p", "hls")
	if el.Overlay().Quality != "720p" || el.Overlay().Format != "hls" {
		t.Errorf("overlay not updated in place: %+v", el.Overlay())
	}
}

func TestAdapter_adopt_waits_for_late_registration(t *testing.T) {
	doc := NewHostDocument()
	a := newTestAdapter(doc, 10)

	go func() {
		time.Sleep(5 * time.Millisecond)
		doc.Register(NewElement("late", nil))
	}()

	rec, err := a.Adopt(context.Background(), "late", "t")
	if err != nil {
		t.Fatalf("Adopt should succeed once the host registers the element: %v", err)
	}
	if rec.Element.ID() != "late" {
		t.Errorf("adopted wrong element: %s", rec.Element.ID())
	}
}

func TestAdapter_adopt_abandoned_after_budget(t *testing.T) {
	doc := NewHostDocument()
	a := newTestAdapter(doc, 3)

	_, err := a.Adopt(context.Background(), "missing", "t")
	if !errors.Is(err, ErrAdoptionAbandoned) {
		t.Errorf("Adopt = %v, want ErrAdoptionAbandoned", err)
	}
}

func TestAdapter_adopt_cancelled(t *testing.T) {
	doc := NewHostDocument()
	a := NewDefaultElementAdapter(doc, nil, nil, 5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Adopt(ctx, "missing", "t")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Adopt on cancelled context = %v, want context.Canceled", err)
	}
}

func TestAdapter_release(t *testing.T) {
	doc := NewHostDocument()
	doc.Register(NewElement("el-1", nil))
	a := newTestAdapter(doc, 3)

	rec, err := a.Adopt(context.Background(), "el-1", "t")
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}

	a.Release("el-1")

	if rec.OwnedByThisSystem {
		t.Error("ownership flag must be cleared on release")
	}
	el, _ := doc.Lookup("el-1")
	if el.Adopted() {
		t.Error("adoption marker must be cleared on release")
	}
	if el.Overlay() != nil || el.Toggle() != nil {
		t.Error("injected controls must be removed on release")
	}
	if _, ok := a.Record("el-1"); ok {
		t.Error("record must be dropped on release")
	}

	// Releasing again is a no-op.
	a.Release("el-1")
}
