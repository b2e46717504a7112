package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"player-orchestrator/internal/platform/metrics"
)

// AdoptedElementRecord tracks one adopted host element: what it looked like
// before adoption and whether this system currently owns its playback.
type AdoptedElementRecord struct {
	Element            *Element
	OriginalAttributes map[string]string
	OwnedByThisSystem  bool
}

// DefaultElementAdapter locates and adopts video elements the host page
// rendered. Adoption is idempotent (keyed by a marker on the element), clears
// the host's own source so native loading cannot race the engine, normalizes
// presentation, and injects the info overlay and format-toggle control.
type DefaultElementAdapter struct {
	doc     *HostDocument
	log     *slog.Logger
	metrics *metrics.Metrics

	// Adoption retry budget: the host may not have registered the element yet
	// when a takeover binding arrives.
	maxAttempts int
	baseDelay   time.Duration

	mu      sync.Mutex
	records map[ElementID]*AdoptedElementRecord
}

// NewDefaultElementAdapter returns an adapter over doc. maxAttempts <= 0 gets
// a budget of 5 attempts; baseDelay <= 0 gets 100ms.
func NewDefaultElementAdapter(doc *HostDocument, log *slog.Logger, m *metrics.Metrics, maxAttempts int, baseDelay time.Duration) *DefaultElementAdapter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &DefaultElementAdapter{
		doc:         doc,
		log:         log,
		metrics:     m,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		records:     make(map[ElementID]*AdoptedElementRecord),
	}
}

// Adopt takes over the element with the given id. If the element is not yet
// registered it retries with growing backoff until the attempt budget runs
// out, then returns ErrAdoptionAbandoned. Adopting an already-adopted element
// returns the existing record instead of creating a duplicate.
func (a *DefaultElementAdapter) Adopt(ctx context.Context, id ElementID, title string) (*AdoptedElementRecord, error) {
	el, err := a.waitForElement(ctx, id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if rec, ok := a.records[id]; ok && el.Adopted() {
		a.mu.Unlock()
		a.UpdateOverlay(el, title, "", "none")
		return rec, nil
	}
	rec := &AdoptedElementRecord{
		Element:            el,
		OriginalAttributes: el.Attrs(),
		OwnedByThisSystem:  true,
	}
	a.records[id] = rec
	a.mu.Unlock()

	// Clear the host's own loading before the engine attaches, so the original
	// progressive source cannot race the new session.
	el.RemoveAttr("src")
	el.RemoveAttr("poster")
	el.SetAttr(adoptedMarkerAttr, "true")

	a.NormalizeStyle(el)
	el.ensureOverlay(title, "", EngineNone.String())

	a.log.Debug("element adopted", slog.String("element_id", string(id)))
	return rec, nil
}

// waitForElement looks the element up, retrying with attempt-squared backoff
// while the host has not registered it yet. The context cancels the wait.
func (a *DefaultElementAdapter) waitForElement(ctx context.Context, id ElementID) (*Element, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if el, ok := a.doc.Lookup(id); ok {
			return el, nil
		}
		if attempt == a.maxAttempts-1 {
			break
		}

		if a.metrics != nil {
			a.metrics.IncAdoptionRetries()
		}
		delay := time.Duration(attempt+1) * time.Duration(attempt+1) * a.baseDelay
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.log.Warn("adoption abandoned", slog.String("element_id", string(id)),
		slog.Int("attempts", a.maxAttempts))
	return nil, ErrAdoptionAbandoned
}

// NormalizeStyle forces full-width, fixed-aspect presentation. Adaptive
// engines can transiently alter intrinsic video dimensions during a quality
// switch, so this runs again after every resize or level-switch signal.
func (a *DefaultElementAdapter) NormalizeStyle(el *Element) {
	el.SetStyle("width", "100%")
	el.SetStyle("aspect-ratio", "16 / 9")
	el.SetStyle("object-fit", "contain")
}

// UpdateOverlay refreshes the injected info overlay and toggle control in
// place. Missing controls are created first; nothing is ever duplicated.
func (a *DefaultElementAdapter) UpdateOverlay(el *Element, title, quality, format string) {
	el.ensureOverlay(title, quality, format)
}

// Release clears the adoption marker and drops the injected controls. The
// original source is not restored; ownership is simply returned to the host.
func (a *DefaultElementAdapter) Release(id ElementID) {
	a.mu.Lock()
	rec, ok := a.records[id]
	if ok {
		rec.OwnedByThisSystem = false
		delete(a.records, id)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	rec.Element.RemoveAttr(adoptedMarkerAttr)
	rec.Element.removeOverlay()
	a.log.Debug("element released", slog.String("element_id", string(id)))
}

// Record returns the adoption record for id, if the element is adopted.
func (a *DefaultElementAdapter) Record(id ElementID) (*AdoptedElementRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	return rec, ok
}
