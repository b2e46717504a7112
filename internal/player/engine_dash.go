package player

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// mpdManifest is the subset of a DASH MPD document this engine reads.
type mpdManifest struct {
	XMLName xml.Name    `xml:"MPD"`
	Type    string      `xml:"type,attr"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ContentType     string              `xml:"contentType,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
	BaseURL   string `xml:"BaseURL"`
}

// dashEngine probes .mpd manifests: video representations become the level
// set. DASH manifests are self-contained, so LevelLoaded reuses the manifest's
// representation list rather than a second fetch.
type dashEngine struct {
	client *http.Client
	cfg    EngineConfig
	log    *slog.Logger

	mu        sync.Mutex
	url       string
	levels    []Level
	current   int
	loading   bool
	destroyed bool
	cancel    context.CancelFunc
	ev        EngineEvents
}

func newDASHEngine(client *http.Client, cfg EngineConfig, log *slog.Logger) *dashEngine {
	return &dashEngine{client: client, cfg: cfg, log: log, current: -1}
}

// Attach implements Engine.
func (e *dashEngine) Attach(ctx context.Context, rawURL string, ev EngineEvents) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.url = rawURL
	e.ev = ev
	e.cancel = cancel
	e.mu.Unlock()

	go e.probe(ctx, rawURL, ev)
}

func (e *dashEngine) probe(ctx context.Context, rawURL string, ev EngineEvents) {
	levels, err := e.fetchManifest(ctx, rawURL)
	if err != nil {
		if e.log != nil {
			e.log.Debug("dash manifest probe failed",
				slog.String("url", rawURL),
				slog.String("error", err.Error()))
		}
		if ev.Error != nil {
			ev.Error(err, true)
		}
		return
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.levels = levels
	autoStart := e.cfg.AutoStartLoad
	e.mu.Unlock()

	if ev.ManifestParsed != nil {
		ev.ManifestParsed(levels)
	}
	if autoStart {
		e.StartLoad()
	}
}

func (e *dashEngine) fetchManifest(ctx context.Context, rawURL string) ([]Level, error) {
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: HTTP %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if e.cfg.MaxBufferBytes > 0 {
		body = io.LimitReader(resp.Body, e.cfg.MaxBufferBytes)
	}

	var mpd mpdManifest
	if err := xml.NewDecoder(body).Decode(&mpd); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var levels []Level
	for _, period := range mpd.Periods {
		for _, set := range period.AdaptationSets {
			if !isVideoAdaptationSet(set) {
				continue
			}
			for _, rep := range set.Representations {
				uri := rep.BaseURL
				if uri != "" {
					if resolved, err := resolveRelativeURL(rawURL, uri); err == nil {
						uri = resolved
					}
				}
				levels = append(levels, Level{
					Width:     rep.Width,
					Height:    rep.Height,
					Bandwidth: rep.Bandwidth,
					URI:       uri,
				})
			}
		}
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("manifest contains no video representations")
	}
	return levels, nil
}

func isVideoAdaptationSet(set mpdAdaptationSet) bool {
	if set.ContentType == "video" {
		return true
	}
	if set.ContentType == "" && set.MimeType == "" {
		// Some manifests omit both; fall back to representation shape.
		for _, rep := range set.Representations {
			if rep.Height > 0 {
				return true
			}
		}
		return false
	}
	return len(set.MimeType) >= 5 && set.MimeType[:5] == "video"
}

// StartLoad implements Engine.
func (e *dashEngine) StartLoad() {
	e.mu.Lock()
	if e.destroyed || e.loading || len(e.levels) == 0 {
		e.mu.Unlock()
		return
	}
	e.loading = true

	idx := e.current
	if idx < 0 {
		for i, l := range e.levels {
			if idx < 0 || l.Bandwidth > e.levels[idx].Bandwidth {
				idx = i
			}
		}
	}
	e.current = idx
	ev := e.ev
	count := len(e.levels)
	e.mu.Unlock()

	if ev.LevelSwitched != nil {
		ev.LevelSwitched(idx)
	}
	if ev.LevelLoaded != nil {
		ev.LevelLoaded(idx, count)
	}
}

// Levels implements Engine.
func (e *dashEngine) Levels() []Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Level, len(e.levels))
	copy(out, e.levels)
	return out
}

// CurrentLevel implements Engine.
func (e *dashEngine) CurrentLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Kind implements Engine.
func (e *dashEngine) Kind() EngineKind { return EngineDASH }

// Destroy implements Engine. Safe to call more than once.
func (e *dashEngine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
