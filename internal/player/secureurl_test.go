package player

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestResolve_empty_reference(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	if got := b.Resolve("", SecureURLConfig{HostURL: "https://example.com"}, ""); got != "" {
		t.Errorf("empty reference should resolve to empty, got %q", got)
	}
}

func TestResolve_absolute_reference_passthrough(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:     "https://other.example",
		URLTemplate: "{{host_url}}/{{token}}/{{expires}}/{{item_field}}",
		Secret:      "s3cret",
	}
	ref := "https://cdn.example/x.m3u8"
	if got := b.Resolve(ref, cfg, ""); got != ref {
		t.Errorf("absolute reference must bypass template logic: got %q", got)
	}
}

func TestResolve_no_template_concat(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{HostURL: "https://example.com"}

	got := b.Resolve("/stream/my_video.m3u8", cfg, "")
	want := "https://example.com/stream/my_video.m3u8"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolve_trailing_and_leading_separators(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())

	tests := []struct {
		name string
		host string
		ref  string
		want string
	}{
		{"both separators", "https://example.com/", "/a.m3u8", "https://example.com/a.m3u8"},
		{"no separators", "https://example.com", "a.m3u8", "https://example.com/a.m3u8"},
		{"double trailing", "https://example.com//", "a.m3u8", "https://example.com/a.m3u8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Resolve(tt.ref, SecureURLConfig{HostURL: tt.host}, "")
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_signed_template_scenario(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:         "https://example.com/stream/",
		URLTemplate:     "{{host_url}}{{token}}/{{expires}}/{{item_field}}",
		Secret:          "topsecret",
		TokenTTLMinutes: 60,
	}

	got := b.Resolve("my_playlist.m3u8", cfg, "")

	pattern := regexp.MustCompile(`^https://example\.com/stream/[A-Za-z0-9_-]{22}/\d{10}/my_playlist\.m3u8$`)
	if !pattern.MatchString(got) {
		t.Errorf("signed URL %q does not match %s", got, pattern)
	}

	wantExpires := fixedClock()().Add(60 * time.Minute).Unix()
	if !strings.Contains(got, "/"+strconv.FormatInt(wantExpires, 10)+"/") {
		t.Errorf("signed URL %q should embed expires %d", got, wantExpires)
	}
}

func TestResolve_deterministic_with_fixed_clock(t *testing.T) {
	cfg := SecureURLConfig{
		HostURL:         "https://example.com",
		URLTemplate:     "{{host_url}}/{{token}}/{{expires}}/{{item_field}}",
		Secret:          "topsecret",
		TokenTTLMinutes: 30,
	}

	a := NewSecureURLBuilderAt(fixedClock()).Resolve("x.m3u8", cfg, "10.0.0.1")
	b := NewSecureURLBuilderAt(fixedClock()).Resolve("x.m3u8", cfg, "10.0.0.1")
	if a != b {
		t.Errorf("same inputs and clock must produce identical URLs: %q vs %q", a, b)
	}
}

func TestResolve_client_ip_changes_token(t *testing.T) {
	cfg := SecureURLConfig{
		HostURL:         "https://example.com",
		URLTemplate:     "{{host_url}}/{{token}}/{{expires}}/{{item_field}}",
		Secret:          "topsecret",
		IncludeClientIP: true,
		TokenTTLMinutes: 30,
	}
	b := NewSecureURLBuilderAt(fixedClock())

	withIP := b.Resolve("x.m3u8", cfg, "10.0.0.1")
	otherIP := b.Resolve("x.m3u8", cfg, "10.0.0.2")
	if withIP == otherIP {
		t.Error("different client IPs must produce different tokens")
	}

	cfg.IncludeClientIP = false
	ignored := b.Resolve("x.m3u8", cfg, "10.0.0.1")
	ignoredOther := b.Resolve("x.m3u8", cfg, "10.0.0.2")
	if ignored != ignoredOther {
		t.Error("client IP must be ignored when IncludeClientIP is false")
	}
}

func TestResolve_no_secret_strips_placeholders(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:     "https://example.com",
		URLTemplate: "{{host_url}}/{{token}}/{{expires}}/{{item_field}}",
	}

	got := b.Resolve("x.m3u8", cfg, "")
	if strings.Contains(got, "{{token}}") || strings.Contains(got, "{{expires}}") {
		t.Errorf("unsigned URL must not contain literal placeholders: %q", got)
	}
	if !strings.Contains(got, "x.m3u8") {
		t.Errorf("unsigned URL should still carry the reference: %q", got)
	}
}

func TestResolve_template_without_item_field_appends(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:     "https://example.com",
		URLTemplate: "{{host_url}}/live",
	}

	got := b.Resolve("playlist.m3u8", cfg, "")
	want := "https://example.com/live/playlist.m3u8"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolve_host_url_with_placeholders(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:         "https://example.com/{{token}}/{{expires}}",
		Secret:          "topsecret",
		TokenTTLMinutes: 60,
	}

	got := b.Resolve("playlist.m3u8", cfg, "")
	pattern := regexp.MustCompile(`^https://example\.com/[A-Za-z0-9_-]{22}/\d{10}/playlist\.m3u8$`)
	if !pattern.MatchString(got) {
		t.Errorf("host-as-template URL %q does not match %s", got, pattern)
	}
}

func TestResolve_percent_encoded_template(t *testing.T) {
	b := NewSecureURLBuilderAt(fixedClock())
	cfg := SecureURLConfig{
		HostURL:     "https://example.com",
		URLTemplate: "%7B%7Bhost_url%7D%7D/vod/%7B%7Bitem_field%7D%7D",
	}

	got := b.Resolve("x.m3u8", cfg, "")
	want := "https://example.com/vod/x.m3u8"
	if got != want {
		t.Errorf("percent-encoded placeholders should be decoded: got %q, want %q", got, want)
	}
}
