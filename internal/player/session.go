package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"player-orchestrator/internal/platform/metrics"
)

// ErrNotAttached is returned when play/pause is requested before the engine
// has attached.
var ErrNotAttached = errors.New("session not attached")

// PlaybackEngineSession owns one adaptive-engine instance bound to one video
// element. It drives the lifecycle
// Idle → Initializing → Attached → (Playing ⇄ Paused) → Disposed, with error
// excursions to Failed and CSPBlocked. All engine callbacks are closures bound
// to this session, so an event from a torn-down engine can only ever reach the
// session that owned it, where the disposed check makes it a no-op.
type PlaybackEngineSession struct {
	id      uuid.UUID
	log     *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	state       SessionState
	element     *Element
	engine      Engine
	url         string
	failure     error
	cspMessage  string
	pendingPlay bool
	cancel      context.CancelFunc
	unsubscribe func()

	quality QualityObserver
	csp     CSPViolationDetector

	// onTerminal is invoked outside the session lock when the session enters
	// Failed or CSPBlocked. The controller uses it to drive fallback.
	onTerminal func(s *PlaybackEngineSession, state SessionState)
}

// SessionDeps carries the collaborators a session needs.
type SessionDeps struct {
	Security *SecurityObserver
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	// OnTerminal may be nil.
	OnTerminal func(s *PlaybackEngineSession, state SessionState)
}

// NewPlaybackEngineSession returns an Idle session for engine bound to element.
// element may be nil when the caller renders its own surface.
func NewPlaybackEngineSession(element *Element, engine Engine, url string, deps SessionDeps) *PlaybackEngineSession {
	s := &PlaybackEngineSession{
		id:         uuid.New(),
		log:        deps.Log,
		metrics:    deps.Metrics,
		state:      StateIdle,
		element:    element,
		engine:     engine,
		url:        url,
		onTerminal: deps.OnTerminal,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if deps.Security != nil {
		s.unsubscribe = deps.Security.Subscribe(s)
	}
	return s
}

// ID returns the session's identity.
func (s *PlaybackEngineSession) ID() uuid.UUID { return s.id }

// Initialize attaches the engine. Quality and CSP detection state start clean.
// The attach itself is fire-and-forget; readiness is observed via callbacks.
func (s *PlaybackEngineSession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrSessionDisposed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return errors.New("session already initialized")
	}
	s.state = StateInitializing
	ctx, s.cancel = context.WithCancel(ctx)
	engine := s.engine
	url := s.url
	s.mu.Unlock()

	s.quality.Reset()
	s.csp.Reset()

	if s.metrics != nil {
		s.metrics.IncSessionsStarted()
	}
	s.log.Debug("session initializing",
		slog.String("session_id", s.id.String()),
		slog.String("engine", engine.Kind().String()),
		slog.String("url", url))

	engine.Attach(ctx, url, EngineEvents{
		ManifestParsed: s.onManifestParsed,
		LevelSwitched:  s.onLevelSwitched,
		LevelLoaded:    s.onLevelLoaded,
		Error:          s.onEngineError,
	})
	return nil
}

func (s *PlaybackEngineSession) onManifestParsed(levels []Level) {
	s.mu.Lock()
	if s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	s.state = StateAttached
	play := s.pendingPlay
	s.pendingPlay = false
	s.mu.Unlock()

	s.quality.Observe(levels, s.engine.CurrentLevel())
	s.log.Debug("session attached",
		slog.String("session_id", s.id.String()),
		slog.Int("levels", len(levels)))

	if play {
		_ = s.Play()
	}
}

func (s *PlaybackEngineSession) onLevelSwitched(level int) {
	if s.terminal() {
		return
	}
	s.quality.Observe(s.engine.Levels(), level)
	if s.metrics != nil {
		s.metrics.IncQualitySwitches()
	}
}

func (s *PlaybackEngineSession) onLevelLoaded(level int, segmentCount int) {
	if s.terminal() {
		return
	}
	s.quality.Observe(s.engine.Levels(), level)
	s.log.Debug("level loaded",
		slog.String("session_id", s.id.String()),
		slog.Int("level", level),
		slog.Int("segments", segmentCount))
}

func (s *PlaybackEngineSession) onEngineError(err error, fatal bool) {
	if !fatal {
		s.log.Debug("non-fatal engine error",
			slog.String("session_id", s.id.String()),
			slog.String("error", err.Error()))
		return
	}
	if s.csp.Confirmed() {
		s.toCSPBlocked()
		return
	}
	s.fail(err)
}

// OnSecurityViolation implements SecurityListener. A confirmed media-source
// block transitions the session to CSPBlocked.
func (s *PlaybackEngineSession) OnSecurityViolation(v SecurityViolation) {
	if s.csp.ObserveViolation(v) {
		s.toCSPBlocked()
	}
}

// HandleMediaError processes a video-element error reported by the host page.
// The CSP signature wins over the generic failure path; ordinary network
// failures always take the Failed path.
func (s *PlaybackEngineSession) HandleMediaError(e MediaError) {
	if s.csp.ObserveMediaError(e) {
		s.toCSPBlocked()
		return
	}
	switch e.Code {
	case MediaErrNetwork, MediaErrDecode, MediaErrSrcNotSupported:
		s.fail(errors.New(e.Message))
	default:
		// Aborted: user agent gave up, not a playback failure.
	}
}

// Play starts (or resumes) playback. Before attach completes the intent is
// remembered and honored on attach, preserving the lazy-load policy: segments
// load on the first user play, not on render.
func (s *PlaybackEngineSession) Play() error {
	s.mu.Lock()
	switch s.state {
	case StateDisposed:
		s.mu.Unlock()
		return ErrSessionDisposed
	case StateInitializing:
		s.pendingPlay = true
		s.mu.Unlock()
		return nil
	case StateAttached, StatePaused:
		s.state = StatePlaying
		engine := s.engine
		s.mu.Unlock()
		engine.StartLoad()
		return nil
	case StatePlaying:
		s.mu.Unlock()
		return nil
	default:
		s.mu.Unlock()
		return ErrNotAttached
	}
}

// Pause suspends playback.
func (s *PlaybackEngineSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDisposed:
		return ErrSessionDisposed
	case StatePlaying:
		s.state = StatePaused
		return nil
	default:
		return ErrNotAttached
	}
}

// Dispose tears down the session: the engine handle is released, listeners
// removed, quality and error state cleared. Safe to call more than once.
func (s *PlaybackEngineSession) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	cancel := s.cancel
	unsubscribe := s.unsubscribe
	s.cancel = nil
	s.unsubscribe = nil
	engine := s.engine
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	engine.Destroy()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.quality.Reset()
	s.csp.Reset()

	if s.metrics != nil {
		s.metrics.IncSessionsDisposed()
	}
	s.log.Debug("session disposed", slog.String("session_id", s.id.String()))
}

func (s *PlaybackEngineSession) toCSPBlocked() {
	s.mu.Lock()
	if s.state == StateDisposed || s.state == StateCSPBlocked {
		s.mu.Unlock()
		return
	}
	s.state = StateCSPBlocked
	s.cspMessage = CSPRemediation
	hook := s.onTerminal
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncCSPBlocks()
	}
	s.log.Warn("playback blocked by content security policy",
		slog.String("session_id", s.id.String()))
	if hook != nil {
		hook(s, StateCSPBlocked)
	}
}

func (s *PlaybackEngineSession) fail(err error) {
	s.mu.Lock()
	if s.state == StateDisposed || s.state == StateFailed || s.state == StateCSPBlocked {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.failure = err
	hook := s.onTerminal
	s.mu.Unlock()

	s.log.Info("session failed",
		slog.String("session_id", s.id.String()),
		slog.String("error", err.Error()))
	if hook != nil {
		hook(s, StateFailed)
	}
}

func (s *PlaybackEngineSession) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDisposed, StateFailed, StateCSPBlocked:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (s *PlaybackEngineSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QualityLabel returns the current quality label, or "" when unknown.
func (s *PlaybackEngineSession) QualityLabel() string {
	return s.quality.Label()
}

// CSPError returns the remediation message, or "" when no block was detected.
func (s *PlaybackEngineSession) CSPError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cspMessage
}

// Failure returns the fatal error that moved the session to Failed, if any.
func (s *PlaybackEngineSession) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// URL returns the playback URL this session was created for.
func (s *PlaybackEngineSession) URL() string { return s.url }

// Kind returns the engine kind in use.
func (s *PlaybackEngineSession) Kind() EngineKind { return s.engine.Kind() }

// Element returns the bound element, or nil.
func (s *PlaybackEngineSession) Element() *Element { return s.element }
