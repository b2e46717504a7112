package player

import "testing"

func TestHostDocument_register_lookup_remove(t *testing.T) {
	doc := NewHostDocument()

	if _, ok := doc.Lookup("el-1"); ok {
		t.Fatal("empty document returned an element")
	}

	doc.Register(NewElement("el-1", map[string]string{"src": "a.mp4"}))
	el, ok := doc.Lookup("el-1")
	if !ok {
		t.Fatal("registered element not found")
	}
	if src, _ := el.Attr("src"); src != "a.mp4" {
		t.Errorf("src = %q, want a.mp4", src)
	}

	doc.Remove("el-1")
	if _, ok := doc.Lookup("el-1"); ok {
		t.Error("removed element still present")
	}
}

func TestElement_attributes_and_style(t *testing.T) {
	el := NewElement("el-1", nil)

	el.SetAttr("poster", "p.jpg")
	if v, _ := el.Attr("poster"); v != "p.jpg" {
		t.Errorf("poster = %q", v)
	}
	el.RemoveAttr("poster")
	if _, ok := el.Attr("poster"); ok {
		t.Error("removed attribute still set")
	}

	el.SetStyle("width", "100%")
	if w, _ := el.Style("width"); w != "100%" {
		t.Errorf("width = %q", w)
	}
}

func TestElement_overlay_updates_in_place(t *testing.T) {
	el := NewElement("el-1", nil)
	if el.Overlay() != nil {
		t.Fatal("fresh element has an overlay")
	}

	el.ensureOverlay("Launch replay", "", "hls")
	first := el.Overlay()
	if first == nil || first.Title != "Launch replay" {
		t.Fatalf("overlay = %+v", first)
	}
	if tc := el.Toggle(); tc == nil || tc.Label == "" {
		t.Error("overlay must come with a format toggle control")
	}

	el.ensureOverlay("Launch replay", "1080p", "hls")
	second := el.Overlay()
	if second != first {
		t.Error("overlay must be updated in place, not recreated")
	}
	if second.Quality != "1080p" {
		t.Errorf("quality = %q, want 1080p", second.Quality)
	}

	el.removeOverlay()
	if el.Overlay() != nil || el.Toggle() != nil {
		t.Error("overlay and toggle must be removed together")
	}
}
