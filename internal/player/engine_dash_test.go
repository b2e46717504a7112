package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const dashManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet contentType="video" mimeType="video/mp4">
      <Representation id="v0" width="640" height="360" bandwidth="800000">
        <BaseURL>video/360.mp4</BaseURL>
      </Representation>
      <Representation id="v1" width="1920" height="1080" bandwidth="6000000">
        <BaseURL>video/1080.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet contentType="audio" mimeType="audio/mp4">
      <Representation id="a0" bandwidth="128000">
        <BaseURL>audio/main.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

const audioOnlyManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet contentType="audio" mimeType="audio/mp4">
      <Representation id="a0" bandwidth="128000"/>
    </AdaptationSet>
  </Period>
</MPD>`

func newDASHTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.mpd", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dashManifest))
	})
	mux.HandleFunc("/audio.mpd", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(audioOnlyManifest))
	})
	return httptest.NewServer(mux)
}

func TestDASHEngine_video_representations_become_levels(t *testing.T) {
	srv := newDASHTestServer()
	defer srv.Close()

	e := newDASHEngine(srv.Client(), DefaultEngineConfig(), nil)
	defer e.Destroy()
	rec := newEngineRecorder()

	e.Attach(context.Background(), srv.URL+"/manifest.mpd", rec.events())

	levels := waitFor(t, rec.manifests, "manifest parse")
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2 (audio sets excluded)", len(levels))
	}
	if levels[1].Height != 1080 || levels[1].Bandwidth != 6000000 {
		t.Errorf("top level = %+v", levels[1])
	}
	if levels[0].URI != srv.URL+"/video/360.mp4" {
		t.Errorf("relative BaseURL not resolved: %q", levels[0].URI)
	}
}

func TestDASHEngine_start_load(t *testing.T) {
	srv := newDASHTestServer()
	defer srv.Close()

	e := newDASHEngine(srv.Client(), DefaultEngineConfig(), nil)
	defer e.Destroy()
	rec := newEngineRecorder()

	e.Attach(context.Background(), srv.URL+"/manifest.mpd", rec.events())
	waitFor(t, rec.manifests, "manifest parse")

	e.StartLoad()

	if got := waitFor(t, rec.switches, "level switch"); got != 1 {
		t.Errorf("switched to level %d, want 1 (highest bandwidth)", got)
	}
	load := waitFor(t, rec.loads, "level load")
	if load[0] != 1 || load[1] != 2 {
		t.Errorf("loaded level %d of %d, want 1 of 2", load[0], load[1])
	}
	if e.CurrentLevel() != 1 {
		t.Errorf("current level = %d, want 1", e.CurrentLevel())
	}
}

func TestDASHEngine_audio_only_is_fatal(t *testing.T) {
	srv := newDASHTestServer()
	defer srv.Close()

	e := newDASHEngine(srv.Client(), DefaultEngineConfig(), nil)
	defer e.Destroy()
	rec := newEngineRecorder()

	e.Attach(context.Background(), srv.URL+"/audio.mpd", rec.events())

	err := waitFor(t, rec.fatals, "fatal error")
	if err == nil {
		t.Fatal("nil fatal error")
	}
}

func TestDASHEngine_missing_manifest_is_fatal(t *testing.T) {
	srv := newDASHTestServer()
	defer srv.Close()

	e := newDASHEngine(srv.Client(), DefaultEngineConfig(), nil)
	defer e.Destroy()
	rec := newEngineRecorder()

	e.Attach(context.Background(), srv.URL+"/gone.mpd", rec.events())

	if err := waitFor(t, rec.fatals, "fatal error"); err == nil {
		t.Fatal("nil fatal error")
	}
}
