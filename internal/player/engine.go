package player

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// EngineConfig bounds an adaptive engine's resource use.
type EngineConfig struct {
	// AutoStartLoad controls whether segment loading begins on attach. It is
	// false by default: loading is deferred until the first user "play" so a
	// poster-only preview costs no bandwidth.
	AutoStartLoad bool
	// MaxBufferLength caps the forward buffer window.
	MaxBufferLength time.Duration
	// MaxBufferBytes caps total buffered bytes.
	MaxBufferBytes int64
	// RequestTimeout bounds each manifest/playlist fetch.
	RequestTimeout time.Duration
}

// DefaultEngineConfig returns the bounded-buffer defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AutoStartLoad:   false,
		MaxBufferLength: 30 * time.Second,
		MaxBufferBytes:  60 * 1000 * 1000,
		RequestTimeout:  15 * time.Second,
	}
}

// EngineEvents carries the callbacks a session installs on its engine. Each
// session binds these closures to its own identity, so a disposed session's
// stale callback can only ever reach that session.
type EngineEvents struct {
	// ManifestParsed fires once the manifest/initial playlist has been parsed.
	ManifestParsed func(levels []Level)
	// LevelSwitched fires when the active rendition changes. level indexes the
	// slice passed to ManifestParsed; -1 means automatic mode.
	LevelSwitched func(level int)
	// LevelLoaded fires when a rendition's own playlist has been loaded.
	LevelLoaded func(level int, segmentCount int)
	// Error fires on engine failure. Fatal errors end the session.
	Error func(err error, fatal bool)
}

// Engine is one adaptive-engine instance bound to one element. Attach is
// fire-and-forget: progress and failure are observed through EngineEvents.
type Engine interface {
	// Attach begins loading the manifest at url. It must not block.
	Attach(ctx context.Context, url string, ev EngineEvents)
	// StartLoad begins segment loading; a no-op before Attach completes or
	// when AutoStartLoad already started it.
	StartLoad()
	// Levels returns the renditions known after ManifestParsed.
	Levels() []Level
	// CurrentLevel returns the active rendition index, or -1 in automatic mode.
	CurrentLevel() int
	// Kind identifies the engine.
	Kind() EngineKind
	// Destroy releases the engine. Idempotent.
	Destroy()
}

// EngineFactory creates engines per kind.
type EngineFactory interface {
	New(kind EngineKind, cfg EngineConfig) (Engine, error)
}

// HTTPEngineFactory builds manifest-probing engines over a shared HTTP client.
type HTTPEngineFactory struct {
	client *http.Client
	log    *slog.Logger
}

// NewHTTPEngineFactory returns a factory. A nil client gets a default with a
// conservative timeout.
func NewHTTPEngineFactory(client *http.Client, log *slog.Logger) *HTTPEngineFactory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPEngineFactory{client: client, log: log}
}

// New implements EngineFactory. EngineNone yields the progressive pseudo-engine
// so that sessions stay uniform across adaptive and native playback.
func (f *HTTPEngineFactory) New(kind EngineKind, cfg EngineConfig) (Engine, error) {
	switch kind {
	case EngineHLS:
		return newHLSEngine(f.client, cfg, f.log), nil
	case EngineDASH:
		return newDASHEngine(f.client, cfg, f.log), nil
	case EngineNone:
		return newProgressiveEngine(), nil
	default:
		return nil, ErrUnsupportedEngine
	}
}

// progressiveEngine backs native playback of a plain media file. There is no
// manifest to parse, so it reports readiness immediately with no levels.
type progressiveEngine struct{}

func newProgressiveEngine() *progressiveEngine { return &progressiveEngine{} }

func (p *progressiveEngine) Attach(ctx context.Context, url string, ev EngineEvents) {
	if ev.ManifestParsed != nil {
		ev.ManifestParsed(nil)
	}
}

func (p *progressiveEngine) StartLoad()        {}
func (p *progressiveEngine) Levels() []Level   { return nil }
func (p *progressiveEngine) CurrentLevel() int { return -1 }
func (p *progressiveEngine) Kind() EngineKind  { return EngineNone }
func (p *progressiveEngine) Destroy()          {}
