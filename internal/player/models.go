package player

import "errors"

// PlayerID uniquely identifies a player binding.
type PlayerID string

// ElementID identifies a video element registered by the host page.
type ElementID string

// BindingMode selects how the stream reference is interpreted.
type BindingMode string

const (
	// ModeStreamLink binds to a string field whose value is the stream path/URL.
	ModeStreamLink BindingMode = "stream_link"
	// ModeFile binds to an uploaded media file; a companion field may carry the
	// adaptive stream link for the same content.
	ModeFile BindingMode = "file"
)

// EngineKind identifies the adaptive engine selected for a resolved URL.
type EngineKind int

const (
	// EngineNone means progressive playback: the element plays the file natively.
	EngineNone EngineKind = iota
	// EngineHLS plays .m3u8 playlists.
	EngineHLS
	// EngineDASH plays .mpd manifests.
	EngineDASH
)

// String returns the wire name of the engine kind.
func (k EngineKind) String() string {
	switch k {
	case EngineHLS:
		return "hls"
	case EngineDASH:
		return "dash"
	default:
		return "none"
	}
}

// SessionState is the lifecycle state of a PlaybackEngineSession.
type SessionState int

const (
	StateIdle SessionState = iota
	StateInitializing
	StateAttached
	StatePlaying
	StatePaused
	StateFailed
	StateCSPBlocked
	StateDisposed
)

// String returns the wire name of the session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateAttached:
		return "attached"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	case StateCSPBlocked:
		return "csp_blocked"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// SecureURLConfig drives stream URL construction. Read-only to the builder.
type SecureURLConfig struct {
	HostURL         string `json:"host_url"`
	URLTemplate     string `json:"url_template,omitempty"`
	Secret          string `json:"secret,omitempty"`
	IncludeClientIP bool   `json:"include_client_ip"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`

	// StreamLinkFieldName names the companion field holding the stream URL
	// when the binding mode is ModeFile.
	StreamLinkFieldName string `json:"stream_link_field_name,omitempty"`
	// PosterImageFieldName names the field holding the poster image reference.
	PosterImageFieldName string `json:"poster_image_field_name,omitempty"`
}

// DefaultTokenTTLMinutes is used when SecureURLConfig.TokenTTLMinutes is unset.
const DefaultTokenTTLMinutes = 60

var (
	// ErrPlayerNotFound is returned when no binding exists for a PlayerID.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrElementNotFound is returned when a takeover target element is not
	// registered with the host document.
	ErrElementNotFound = errors.New("element not found")

	// ErrSessionDisposed is returned when an operation targets a session that
	// has already been torn down.
	ErrSessionDisposed = errors.New("session disposed")

	// ErrUnsupportedEngine is returned when neither an adaptive engine nor
	// native playback is available for the resolved URL.
	ErrUnsupportedEngine = errors.New("unsupported engine")

	// ErrAdoptionAbandoned is returned when the takeover target never appeared
	// within the adoption attempt budget.
	ErrAdoptionAbandoned = errors.New("adoption abandoned: element did not appear")
)

// Snapshot is the externally visible view of a player binding.
type Snapshot struct {
	ID           PlayerID     `json:"id"`
	Mode         BindingMode  `json:"mode"`
	State        SessionState `json:"-"`
	StateName    string       `json:"state"`
	ResolvedURL  string       `json:"resolved_url,omitempty"`
	EngineKind   string       `json:"engine_kind"`
	QualityLabel string       `json:"quality_label,omitempty"`
	CSPError     string       `json:"csp_error,omitempty"`
	PosterURL    string       `json:"poster_url,omitempty"`
	ElementID    ElementID    `json:"element_id,omitempty"`
	Progressive  bool         `json:"progressive"`
}
