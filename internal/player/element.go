package player

import "sync"

// adoptedMarkerAttr marks an element as adopted by this system. Adoption
// checks the marker before acting, which keeps adoption idempotent.
const adoptedMarkerAttr = "data-adaptive-adopted"

// InfoOverlay is the title/quality/format overlay injected next to an adopted
// element. It is created once and updated in place.
type InfoOverlay struct {
	Title   string `json:"title"`
	Quality string `json:"quality,omitempty"`
	Format  string `json:"format"`
}

// ToggleControl is the format-toggle sibling control.
type ToggleControl struct {
	Label string `json:"label"`
}

// Element models a host-rendered video element as registered with this
// system: its attributes, style, and the auxiliary controls injected beside
// it. The host owns the element's lifecycle; sessions only hold a
// back-reference.
type Element struct {
	mu      sync.Mutex
	id      ElementID
	attrs   map[string]string
	style   map[string]string
	overlay *InfoOverlay
	toggle  *ToggleControl
}

// NewElement returns an element with the given id and initial attributes.
func NewElement(id ElementID, attrs map[string]string) *Element {
	e := &Element{
		id:    id,
		attrs: make(map[string]string, len(attrs)),
		style: make(map[string]string),
	}
	for k, v := range attrs {
		e.attrs[k] = v
	}
	return e
}

// ID returns the element's identifier.
func (e *Element) ID() ElementID { return e.id }

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok
}

// SetAttr sets the named attribute.
func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	e.attrs[name] = value
	e.mu.Unlock()
}

// RemoveAttr deletes the named attribute.
func (e *Element) RemoveAttr(name string) {
	e.mu.Lock()
	delete(e.attrs, name)
	e.mu.Unlock()
}

// Attrs returns a copy of all attributes.
func (e *Element) Attrs() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// SetStyle sets one style property.
func (e *Element) SetStyle(prop, value string) {
	e.mu.Lock()
	e.style[prop] = value
	e.mu.Unlock()
}

// Style returns the named style property.
func (e *Element) Style(prop string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.style[prop]
	return v, ok
}

// Adopted reports whether the adoption marker is present.
func (e *Element) Adopted() bool {
	_, ok := e.Attr(adoptedMarkerAttr)
	return ok
}

// Overlay returns the injected info overlay, or nil if none exists.
func (e *Element) Overlay() *InfoOverlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlay
}

// Toggle returns the injected format-toggle control, or nil if none exists.
func (e *Element) Toggle() *ToggleControl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggle
}

// ensureOverlay installs the overlay and toggle control if absent, then
// updates both in place. It never creates duplicates.
func (e *Element) ensureOverlay(title, quality, format string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil {
		e.overlay = &InfoOverlay{}
	}
	if e.toggle == nil {
		e.toggle = &ToggleControl{}
	}
	e.overlay.Title = title
	e.overlay.Quality = quality
	e.overlay.Format = format
	e.toggle.Label = "Switch format"
}

// removeOverlay drops the injected controls.
func (e *Element) removeOverlay() {
	e.mu.Lock()
	e.overlay = nil
	e.toggle = nil
	e.mu.Unlock()
}

// HostDocument is the registry of video elements the host page has announced.
// It plays the role of the DOM for takeover bindings: adoption looks elements
// up here, possibly before the host has registered them.
type HostDocument struct {
	mu       sync.RWMutex
	elements map[ElementID]*Element
}

// NewHostDocument returns an empty document.
func NewHostDocument() *HostDocument {
	return &HostDocument{elements: make(map[ElementID]*Element)}
}

// Register announces an element. Re-registering an id replaces the element.
func (d *HostDocument) Register(e *Element) {
	d.mu.Lock()
	d.elements[e.ID()] = e
	d.mu.Unlock()
}

// Lookup returns the element with the given id.
func (d *HostDocument) Lookup(id ElementID) (*Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.elements[id]
	return e, ok
}

// Remove forgets the element with the given id.
func (d *HostDocument) Remove(id ElementID) {
	d.mu.Lock()
	delete(d.elements, id)
	d.mu.Unlock()
}
