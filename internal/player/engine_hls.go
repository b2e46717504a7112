package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/grafov/m3u8"
)

// hlsEngine probes .m3u8 playlists: it parses the master playlist into
// renditions on attach and loads a rendition's media playlist on demand.
// Segment loading is deferred until StartLoad unless AutoStartLoad is set.
type hlsEngine struct {
	client *http.Client
	cfg    EngineConfig
	log    *slog.Logger

	mu        sync.Mutex
	url       string
	levels    []Level
	current   int
	loading   bool
	destroyed bool
	ctx       context.Context
	cancel    context.CancelFunc
	ev        EngineEvents
}

func newHLSEngine(client *http.Client, cfg EngineConfig, log *slog.Logger) *hlsEngine {
	return &hlsEngine{client: client, cfg: cfg, log: log, current: -1}
}

// Attach implements Engine. The manifest fetch runs in its own goroutine;
// outcome is reported through ev.
func (e *hlsEngine) Attach(ctx context.Context, rawURL string, ev EngineEvents) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.url = rawURL
	e.ev = ev
	e.ctx = ctx
	e.cancel = cancel
	e.mu.Unlock()

	go e.probe(ctx, rawURL, ev)
}

func (e *hlsEngine) probe(ctx context.Context, rawURL string, ev EngineEvents) {
	levels, err := e.fetchMaster(ctx, rawURL)
	if err != nil {
		if e.log != nil {
			e.log.Debug("hls manifest probe failed",
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
		e.startLoad(ctx)
	}
}

// fetchMaster fetches and decodes the playlist at rawURL. A master playlist
// yields one level per variant; a bare media playlist yields a single level
// with unknown resolution.
func (e *hlsEngine) fetchMaster(ctx context.Context, rawURL string) ([]Level, error) {
	playlist, listType, err := e.decode(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if listType != m3u8.MASTER {
		return []Level{{URI: rawURL}}, nil
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok || len(master.Variants) == 0 {
		return nil, fmt.Errorf("master playlist contains no variants")
	}

	levels := make([]Level, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		variantURL, err := resolveRelativeURL(rawURL, v.URI)
		if err != nil {
			return nil, fmt.Errorf("resolve variant url: %w", err)
		}
		w, h := parseResolution(v.Resolution)
		levels = append(levels, Level{
			Width:     w,
			Height:    h,
			Bandwidth: int(v.Bandwidth),
			URI:       variantURL,
		})
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("master playlist contains no variants")
	}
	return levels, nil
}

// StartLoad implements Engine: begins loading segments of the chosen level.
func (e *hlsEngine) StartLoad() {
	e.mu.Lock()
	if e.destroyed || e.loading || e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.loading = true
	ctx := e.ctx
	e.mu.Unlock()

	e.startLoad(ctx)
}

func (e *hlsEngine) startLoad(ctx context.Context) {
	e.mu.Lock()
	idx := e.current
	if idx < 0 {
		// Automatic mode: load the highest-bandwidth rendition first.
		best := -1
		for i, l := range e.levels {
			if best < 0 || l.Bandwidth > e.levels[best].Bandwidth {
				best = i
			}
		}
		idx = best
	}
	var target Level
	if idx >= 0 && idx < len(e.levels) {
		target = e.levels[idx]
	}
	ev := e.ev
	e.mu.Unlock()

	if target.URI == "" {
		return
	}

	go func() {
		count, err := e.fetchMediaSegmentCount(ctx, target.URI)
		if err != nil {
			if ev.Error != nil {
				ev.Error(err, false)
			}
			return
		}

		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			return
		}
		e.current = idx
		e.mu.Unlock()

		if ev.LevelSwitched != nil {
			ev.LevelSwitched(idx)
		}
		if ev.LevelLoaded != nil {
			ev.LevelLoaded(idx, count)
		}
	}()
}

func (e *hlsEngine) fetchMediaSegmentCount(ctx context.Context, rawURL string) (int, error) {
	playlist, listType, err := e.decode(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	if listType != m3u8.MEDIA {
		return 0, fmt.Errorf("expected media playlist at %s", rawURL)
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return 0, fmt.Errorf("unexpected playlist type")
	}

	count := 0
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		count++
	}
	return count, nil
}

func (e *hlsEngine) decode(ctx context.Context, rawURL string) (m3u8.Playlist, m3u8.ListType, error) {
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch playlist: HTTP %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if e.cfg.MaxBufferBytes > 0 {
		body = io.LimitReader(resp.Body, e.cfg.MaxBufferBytes)
	}

	playlist, listType, err := m3u8.DecodeFrom(body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("parse playlist: %w", err)
	}
	return playlist, listType, nil
}

// Levels implements Engine.
func (e *hlsEngine) Levels() []Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Level, len(e.levels))
	copy(out, e.levels)
	return out
}

// CurrentLevel implements Engine.
func (e *hlsEngine) CurrentLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Kind implements Engine.
func (e *hlsEngine) Kind() EngineKind { return EngineHLS }

// Destroy implements Engine. Safe to call more than once.
func (e *hlsEngine) Destroy() {
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

// resolveRelativeURL resolves ref against base the way a playlist consumer
// must: relative variant URIs are joined to the master playlist's location.
func resolveRelativeURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// parseResolution splits "1920x1080" into width and height. Unknown or
// malformed resolutions yield zeros.
func parseResolution(res string) (w, h int) {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, _ = strconv.Atoi(parts[0])
	h, _ = strconv.Atoi(parts[1])
	return w, h
}
