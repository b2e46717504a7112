package player

import "testing"

func TestClassifyFormat(t *testing.T) {
	tests := []struct {
		url  string
		want EngineKind
	}{
		{"https://x/video.mpd", EngineDASH},
		{"https://x/VIDEO.MPD", EngineDASH},
		{"https://cdn.example/dash/stream", EngineDASH},
		{"https://x/manifest?format=mpd-time-csf", EngineDASH},
		{"/a/b.m3u8", EngineHLS},
		{"https://cdn.example/live/master.m3u8?token=abc", EngineHLS},
		{"/a/b.mp4", EngineNone},
		{"https://x/movie.webm", EngineNone},
		{"https://x/clip.m3u8.bak", EngineNone},
		{"", EngineNone},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ClassifyFormat(tt.url); got != tt.want {
				t.Errorf("ClassifyFormat(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestEngineKind_String(t *testing.T) {
	if EngineHLS.String() != "hls" || EngineDASH.String() != "dash" || EngineNone.String() != "none" {
		t.Error("unexpected engine kind names")
	}
}
