package player

import (
	"net/url"
	"strings"
)

// ClassifyFormat decides which adaptive engine a resolved URL calls for.
// Pattern-based only; no network inspection. URLs that match neither HLS nor
// DASH markers are played progressively (EngineNone).
func ClassifyFormat(rawURL string) EngineKind {
	if rawURL == "" {
		return EngineNone
	}

	path := rawURL
	query := ""
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
		query = u.RawQuery
	}
	lowerPath := strings.ToLower(path)
	lowerQuery := strings.ToLower(query)

	switch {
	case strings.HasSuffix(lowerPath, ".mpd"),
		strings.Contains(lowerPath, "/dash/"),
		strings.Contains(lowerQuery, "format=mpd"):
		return EngineDASH
	case strings.HasSuffix(lowerPath, ".m3u8"):
		return EngineHLS
	default:
		return EngineNone
	}
}
