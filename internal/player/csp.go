package player

import (
	"strings"
	"sync"
)

// MediaErrorCode mirrors the error codes a video element reports.
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

// MediaError is a structured video-element error delivered by the host page.
type MediaError struct {
	Code    MediaErrorCode `json:"code"`
	Message string         `json:"message"`
}

// SecurityViolation is a structured security-policy violation signal delivered
// by the host page (or the browser's violation event).
type SecurityViolation struct {
	ViolatedDirective string `json:"violated_directive"`
	BlockedURI        string `json:"blocked_uri"`
	SourceFile        string `json:"source_file,omitempty"`
}

// cspBlockPhrase is the message fragment browsers emit when the engine's
// buffer-to-video handoff is rejected by the page's security policy. This is
// inherently browser-fragile; it lives only here so it can be swapped without
// touching session logic.
const cspBlockPhrase = "url safety check"

// CSPRemediation is the fixed operator-facing message surfaced on a confirmed
// security-policy block.
const CSPRemediation = "Adaptive playback was blocked by the page's Content-Security-Policy. " +
	"The media-src directive must permit blob: URLs, for example: media-src 'self' blob:"

// CSPViolationDetector decides whether a playback failure stems from a
// security-policy block rather than a network or format error. Each of its two
// signals must be fully specific on its own; ordinary network failures are
// never treated as policy blocks. State is reset per session.
type CSPViolationDetector struct {
	mu        sync.Mutex
	confirmed bool
}

// ObserveViolation inspects a direct security-policy violation signal.
// It confirms only when the violated rule concerns media sources and the
// blocked resource is an in-memory buffer URL.
func (d *CSPViolationDetector) ObserveViolation(v SecurityViolation) bool {
	directive := strings.ToLower(v.ViolatedDirective)
	blocked := strings.ToLower(v.BlockedURI)
	if !strings.Contains(directive, "media-src") {
		return d.Confirmed()
	}
	if !strings.HasPrefix(blocked, "blob") {
		return d.Confirmed()
	}

	d.mu.Lock()
	d.confirmed = true
	d.mu.Unlock()
	return true
}

// ObserveMediaError inspects a video-element error. It confirms only for the
// "source not supported" code carrying the specific block phrase; network
// error codes are explicitly excluded even when the message looks suspicious.
func (d *CSPViolationDetector) ObserveMediaError(e MediaError) bool {
	if e.Code != MediaErrSrcNotSupported {
		return d.Confirmed()
	}
	if !strings.Contains(strings.ToLower(e.Message), cspBlockPhrase) {
		return d.Confirmed()
	}

	d.mu.Lock()
	d.confirmed = true
	d.mu.Unlock()
	return true
}

// Confirmed reports whether a policy block has been detected this session.
func (d *CSPViolationDetector) Confirmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirmed
}

// Reset clears detection state at the start of a new session.
func (d *CSPViolationDetector) Reset() {
	d.mu.Lock()
	d.confirmed = false
	d.mu.Unlock()
}
