package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"player-orchestrator/internal/platform/metrics"
)

// Binding ties one player to its stream reference, configuration, optional
// takeover element, and the currently live session. Bindings are mutated only
// under their own lock; the controller serializes teardown-then-create so at
// most one non-disposed session exists per binding (and per element).
type Binding struct {
	ID        PlayerID
	Mode      BindingMode
	ElementID ElementID
	Title     string

	mu        sync.Mutex
	reference string
	fields    map[string]string
	config    SecureURLConfig
	clientIP  string

	session           *PlaybackEngineSession
	resolvedURL       string
	posterURL         string
	kind              EngineKind
	forcedProgressive bool
	fallbackUsed      bool
}

// Session returns the binding's current session, or nil.
func (b *Binding) Session() *PlaybackEngineSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// BindRequest describes a new player binding.
type BindRequest struct {
	// ID is optional; a fresh one is generated when empty.
	ID PlayerID `json:"id,omitempty"`
	// Mode selects stream-link vs uploaded-file interpretation.
	Mode BindingMode `json:"mode"`
	// Reference is the bound field's raw value: a stream path for
	// ModeStreamLink, the uploaded file's path for ModeFile.
	Reference string `json:"reference"`
	// Fields carries companion field values of the bound item; the stream
	// link and poster fields named by the config are read from here.
	Fields map[string]string `json:"fields,omitempty"`
	// Config overrides the controller's default SecureURLConfig when any of
	// its fields are set.
	Config *SecureURLConfig `json:"config,omitempty"`
	// ElementID names a host-rendered element to take over; empty means the
	// caller renders its own surface.
	ElementID ElementID `json:"element_id,omitempty"`
	// Title is shown in the injected info overlay.
	Title string `json:"title,omitempty"`
	// ClientIP is used for token signing when the config asks for it.
	ClientIP string `json:"-"`
}

// Controller is the top-level state machine: it decides which URL and engine
// each player uses, drives fallback between adaptive and progressive
// playback, and re-evaluates on every relevant input change.
type Controller struct {
	registry  Registry
	doc       *HostDocument
	adapter   *DefaultElementAdapter
	engines   EngineFactory
	security  *SecurityObserver
	urls      *SecureURLBuilder
	engineCfg EngineConfig
	defaults  SecureURLConfig
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// ControllerDeps carries the controller's collaborators.
type ControllerDeps struct {
	Registry  Registry
	Document  *HostDocument
	Adapter   *DefaultElementAdapter
	Engines   EngineFactory
	Security  *SecurityObserver
	URLs      *SecureURLBuilder
	EngineCfg EngineConfig
	Defaults  SecureURLConfig
	Log       *slog.Logger
	Metrics   *metrics.Metrics
}

// NewController wires a controller from deps. Registry, Document, Adapter,
// Engines, Security, and URLs are required.
func NewController(deps ControllerDeps) *Controller {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		registry:  deps.Registry,
		doc:       deps.Document,
		adapter:   deps.Adapter,
		engines:   deps.Engines,
		security:  deps.Security,
		urls:      deps.URLs,
		engineCfg: deps.EngineCfg,
		defaults:  deps.Defaults,
		log:       log,
		metrics:   deps.Metrics,
	}
}

// Bind creates (or, for an already-bound element, updates) a player binding
// and starts its first session. Binding the same element twice updates the
// existing binding instead of creating a duplicate engine session.
func (c *Controller) Bind(ctx context.Context, req BindRequest) (*Binding, error) {
	if req.Mode == "" {
		req.Mode = ModeStreamLink
	}

	if existing, ok := c.registry.ByElement(req.ElementID); ok {
		c.log.Debug("element already bound, updating existing binding",
			slog.String("element_id", string(req.ElementID)),
			slog.String("player_id", string(existing.ID)))
		if err := c.applySource(ctx, existing, req.Reference, req.Fields, req.Config, req.ClientIP); err != nil {
			return nil, err
		}
		return existing, nil
	}

	id := req.ID
	if id == "" {
		id = PlayerID(uuid.NewString())
	}

	b := &Binding{
		ID:        id,
		Mode:      req.Mode,
		ElementID: req.ElementID,
		Title:     req.Title,
		reference: req.Reference,
		fields:    req.Fields,
		config:    c.mergedConfig(req.Config),
		clientIP:  req.ClientIP,
	}
	c.registry.Put(b)

	if err := c.evaluate(ctx, b); err != nil {
		c.registry.Delete(id)
		return nil, err
	}
	return b, nil
}

// UpdateSource re-evaluates a binding after its reference, companion fields,
// or configuration changed. The old session is fully disposed before a new
// one is initialized.
func (c *Controller) UpdateSource(ctx context.Context, id PlayerID, reference string, fields map[string]string, cfg *SecureURLConfig) error {
	b, ok := c.registry.Get(id)
	if !ok {
		return ErrPlayerNotFound
	}
	return c.applySource(ctx, b, reference, fields, cfg, "")
}

func (c *Controller) applySource(ctx context.Context, b *Binding, reference string, fields map[string]string, cfg *SecureURLConfig, clientIP string) error {
	b.mu.Lock()
	b.reference = reference
	if fields != nil {
		b.fields = fields
	}
	if cfg != nil {
		b.config = c.mergedConfig(cfg)
	}
	if clientIP != "" {
		b.clientIP = clientIP
	}
	// A new source gets a fresh fallback budget and format choice.
	b.fallbackUsed = false
	b.forcedProgressive = false
	b.mu.Unlock()

	return c.evaluate(ctx, b)
}

// ToggleFormat switches the binding between adaptive and progressive playback
// for the current reference.
func (c *Controller) ToggleFormat(ctx context.Context, id PlayerID) error {
	b, ok := c.registry.Get(id)
	if !ok {
		return ErrPlayerNotFound
	}

	b.mu.Lock()
	b.forcedProgressive = !b.forcedProgressive
	b.mu.Unlock()

	return c.evaluate(ctx, b)
}

// Play forwards user play intent to the binding's session.
func (c *Controller) Play(id PlayerID) error {
	s, err := c.sessionFor(id)
	if err != nil {
		return err
	}
	return s.Play()
}

// Pause forwards user pause intent to the binding's session.
func (c *Controller) Pause(id PlayerID) error {
	s, err := c.sessionFor(id)
	if err != nil {
		return err
	}
	return s.Pause()
}

// HandleMediaError delivers a video-element error to the binding's session.
func (c *Controller) HandleMediaError(id PlayerID, e MediaError) error {
	s, err := c.sessionFor(id)
	if err != nil {
		return err
	}
	s.HandleMediaError(e)
	return nil
}

// HandleSecurityViolation dispatches a security-policy violation to every
// active session through the process-wide observer. Violations are not
// addressed to a player: the browser signal carries no session identity.
func (c *Controller) HandleSecurityViolation(v SecurityViolation) {
	c.security.Dispatch(v)
}

// HandleResize re-normalizes the adopted element's presentation. Quality
// switches can transiently alter intrinsic dimensions, so the host reports
// resizes here.
func (c *Controller) HandleResize(id PlayerID) error {
	b, ok := c.registry.Get(id)
	if !ok {
		return ErrPlayerNotFound
	}
	b.mu.Lock()
	el := c.boundElement(b)
	b.mu.Unlock()
	if el != nil && c.adapter != nil {
		c.adapter.NormalizeStyle(el)
	}
	return nil
}

// Unbind disposes the binding's session, releases any adopted element, and
// forgets the binding.
func (c *Controller) Unbind(id PlayerID) error {
	b, ok := c.registry.Get(id)
	if !ok {
		return ErrPlayerNotFound
	}

	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()

	if s != nil {
		s.Dispose()
	}
	if b.ElementID != "" && c.adapter != nil {
		c.adapter.Release(b.ElementID)
	}
	c.registry.Delete(id)
	return nil
}

// Snapshot returns the externally visible state of a binding.
func (c *Controller) Snapshot(id PlayerID) (Snapshot, error) {
	b, ok := c.registry.Get(id)
	if !ok {
		return Snapshot{}, ErrPlayerNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		ID:          b.ID,
		Mode:        b.Mode,
		ResolvedURL: b.resolvedURL,
		EngineKind:  b.kind.String(),
		PosterURL:   b.posterURL,
		ElementID:   b.ElementID,
		Progressive: b.kind == EngineNone,
	}
	if b.session != nil {
		snap.State = b.session.State()
		snap.QualityLabel = b.session.QualityLabel()
		snap.CSPError = b.session.CSPError()
	} else {
		snap.State = StateIdle
	}
	snap.StateName = snap.State.String()

	if el := c.boundElement(b); el != nil && c.adapter != nil {
		c.adapter.UpdateOverlay(el, b.Title, snap.QualityLabel, snap.EngineKind)
	}
	return snap, nil
}

// evaluate recomputes the binding's URL and engine choice and swaps the
// session. The previous session is fully disposed before the new one is
// initialized; re-entrant overlap on one element is therefore impossible.
func (c *Controller) evaluate(ctx context.Context, b *Binding) error {
	b.mu.Lock()

	if b.session != nil {
		b.session.Dispose()
		b.session = nil
	}

	adaptiveRef, progressiveRef := b.references()
	resolved := c.urls.Resolve(adaptiveRef, b.config, b.clientIP)
	kind := ClassifyFormat(resolved)
	b.posterURL = c.urls.Resolve(b.fields[b.config.PosterImageFieldName], b.config, b.clientIP)

	if b.forcedProgressive || kind == EngineNone || resolved == "" {
		kind = EngineNone
		if progressive := c.urls.Resolve(progressiveRef, b.config, b.clientIP); progressive != "" {
			resolved = progressive
		}
	}
	if resolved == "" {
		// Nothing to play; stay idle until the reference changes.
		b.resolvedURL = ""
		b.kind = EngineNone
		b.mu.Unlock()
		return nil
	}

	engine, err := c.engines.New(kind, c.engineCfg)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("create %s engine: %w", kind, err)
	}

	var el *Element
	if b.ElementID != "" && c.adapter != nil {
		rec, err := c.adapter.Adopt(ctx, b.ElementID, b.Title)
		if err != nil {
			b.mu.Unlock()
			return err
		}
		el = rec.Element
	}

	session := NewPlaybackEngineSession(el, engine, resolved, SessionDeps{
		Security:   c.security,
		Log:        c.log,
		Metrics:    c.metrics,
		OnTerminal: func(s *PlaybackEngineSession, state SessionState) { c.onTerminal(b, s, state) },
	})
	b.session = session
	b.resolvedURL = resolved
	b.kind = kind

	if el != nil {
		if kind == EngineNone {
			// Progressive playback: the element plays the file natively.
			el.SetAttr("src", resolved)
		}
		c.adapter.UpdateOverlay(el, b.Title, "", kind.String())
	}

	b.mu.Unlock()

	c.log.Info("player evaluated",
		slog.String("player_id", string(b.ID)),
		slog.String("engine", kind.String()),
		slog.String("url", resolved))

	// Initialize runs outside the binding lock: engine callbacks may re-enter
	// the controller (fallback) on the same goroutine. A session superseded
	// between unlock and here reports ErrSessionDisposed, which is not an
	// evaluation failure.
	if err := session.Initialize(ctx); err != nil && !errors.Is(err, ErrSessionDisposed) {
		return err
	}
	return nil
}

// references returns the adaptive stream reference and the progressive file
// reference for the binding, per its mode. Caller holds b.mu.
func (b *Binding) references() (adaptive, progressive string) {
	switch b.Mode {
	case ModeFile:
		progressive = b.reference
		if name := b.config.StreamLinkFieldName; name != "" {
			adaptive = b.fields[name]
		}
	default:
		adaptive = b.reference
	}
	return adaptive, progressive
}

// onTerminal reacts to a session entering Failed or CSPBlocked. A failed
// adaptive session gets exactly one fallback to the progressive file; a
// policy block never falls back, its remediation is operator-facing.
func (c *Controller) onTerminal(b *Binding, s *PlaybackEngineSession, state SessionState) {
	if state != StateFailed {
		return
	}

	b.mu.Lock()
	// Stale callback from an already-replaced session: no-op.
	if b.session != s {
		b.mu.Unlock()
		return
	}
	_, progressiveRef := b.references()
	canFallBack := !b.fallbackUsed && b.kind != EngineNone && progressiveRef != ""
	if canFallBack {
		b.fallbackUsed = true
		b.forcedProgressive = true
	}
	b.mu.Unlock()

	if !canFallBack {
		c.log.Warn("playback failed, no fallback available",
			slog.String("player_id", string(b.ID)))
		return
	}

	if c.metrics != nil {
		c.metrics.IncFallbacks()
	}
	c.log.Info("falling back to progressive playback",
		slog.String("player_id", string(b.ID)))

	// The session callback goroutine re-enters evaluate; it must not hold any
	// session lock here (onTerminal is invoked outside it).
	if err := c.evaluate(context.Background(), b); err != nil {
		c.log.Error("fallback failed",
			slog.String("player_id", string(b.ID)),
			slog.String("error", err.Error()))
	}
}

func (c *Controller) sessionFor(id PlayerID) (*PlaybackEngineSession, error) {
	b, ok := c.registry.Get(id)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	s := b.Session()
	if s == nil {
		return nil, ErrNotAttached
	}
	return s, nil
}

// boundElement resolves the binding's element, if any. Caller holds b.mu.
func (c *Controller) boundElement(b *Binding) *Element {
	if b.ElementID == "" || c.doc == nil {
		return nil
	}
	el, ok := c.doc.Lookup(b.ElementID)
	if !ok {
		return nil
	}
	return el
}

func (c *Controller) mergedConfig(cfg *SecureURLConfig) SecureURLConfig {
	if cfg == nil {
		return c.defaults
	}
	merged := *cfg
	if merged.HostURL == "" {
		merged.HostURL = c.defaults.HostURL
	}
	if merged.URLTemplate == "" {
		merged.URLTemplate = c.defaults.URLTemplate
	}
	if merged.Secret == "" {
		merged.Secret = c.defaults.Secret
	}
	if merged.TokenTTLMinutes <= 0 {
		merged.TokenTTLMinutes = c.defaults.TokenTTLMinutes
	}
	if merged.StreamLinkFieldName == "" {
		merged.StreamLinkFieldName = c.defaults.StreamLinkFieldName
	}
	if merged.PosterImageFieldName == "" {
		merged.PosterImageFieldName = c.defaults.PosterImageFieldName
	}
	return merged
}
