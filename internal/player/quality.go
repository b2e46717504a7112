package player

import (
	"fmt"
	"sync"
)

// Level describes one rendition reported by an adaptive engine.
type Level struct {
	Height    int
	Width     int
	Bandwidth int
	URI       string
}

// QualityLabel maps a vertical resolution to a human label. A non-positive
// height yields "" (quality unknown).
func QualityLabel(height int) string {
	switch {
	case height <= 0:
		return ""
	case height >= 2160:
		return "4K"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 540:
		return "540p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	case height >= 240:
		return "240p"
	default:
		return fmt.Sprintf("%dp", height)
	}
}

// QualityObserver tracks the current quality label for one bound element.
// It is reset on every new session initialization.
type QualityObserver struct {
	mu    sync.Mutex
	label string
}

// Observe records the active rendition out of levels. current indexes the
// engine's active level; a negative current means the engine is still in
// automatic mode, in which case the highest available rendition wins.
func (q *QualityObserver) Observe(levels []Level, current int) {
	height := 0
	if current >= 0 && current < len(levels) {
		height = levels[current].Height
	} else {
		for _, l := range levels {
			if l.Height > height {
				height = l.Height
			}
		}
	}

	q.mu.Lock()
	q.label = QualityLabel(height)
	q.mu.Unlock()
}

// Label returns the current quality label, or "" when unknown.
func (q *QualityObserver) Label() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.label
}

// Reset clears the tracked quality back to unknown.
func (q *QualityObserver) Reset() {
	q.mu.Lock()
	q.label = ""
	q.mu.Unlock()
}
