package player

import (
	"crypto/md5"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Template placeholders recognized by the secure URL builder.
const (
	placeholderHostURL   = "{{host_url}}"
	placeholderItemField = "{{item_field}}"
	placeholderToken     = "{{token}}"
	placeholderExpires   = "{{expires}}"
)

// SecureURLBuilder turns a raw stream reference plus a SecureURLConfig into a
// final, possibly token-signed, URL. It never fails for absent configuration;
// it degrades to best-effort unsigned URLs instead.
type SecureURLBuilder struct {
	now func() time.Time
}

// NewSecureURLBuilder returns a builder using the wall clock.
func NewSecureURLBuilder() *SecureURLBuilder {
	return &SecureURLBuilder{now: time.Now}
}

// NewSecureURLBuilderAt returns a builder using the given clock. Two calls with
// the same inputs and clock produce identical output, token included.
func NewSecureURLBuilderAt(now func() time.Time) *SecureURLBuilder {
	return &SecureURLBuilder{now: now}
}

// Resolve builds the playback URL for reference under cfg. clientIP is the
// requesting client's address, used only when cfg.IncludeClientIP is set and
// the address is known. An empty reference resolves to "".
func (b *SecureURLBuilder) Resolve(reference string, cfg SecureURLConfig, clientIP string) string {
	if reference == "" {
		return ""
	}

	// Remote sources bypass all template logic.
	if isAbsoluteURL(reference) {
		return reference
	}

	ref := strings.TrimPrefix(reference, "/")
	host := decodePlaceholders(cfg.HostURL)

	// The template controls its own separators, so the host is substituted
	// exactly as configured. Trimming happens only on the plain join paths.
	template := decodePlaceholders(cfg.URLTemplate)
	if template != "" {
		out := strings.ReplaceAll(template, placeholderHostURL, host)
		out = b.substituteToken(out, cfg, clientIP)
		if strings.Contains(template, placeholderItemField) {
			return strings.ReplaceAll(out, placeholderItemField, ref)
		}
		return joinURL(out, ref)
	}

	host = strings.TrimRight(host, "/")

	// No template configured: hostUrl itself may carry token placeholders.
	if strings.Contains(host, placeholderToken) || strings.Contains(host, placeholderExpires) {
		return joinURL(b.substituteToken(host, cfg, clientIP), ref)
	}
	return joinURL(host, ref)
}

// substituteToken fills {{token}} and {{expires}} in s. Without a secret the
// placeholders are removed and the URL stays unsigned.
func (b *SecureURLBuilder) substituteToken(s string, cfg SecureURLConfig, clientIP string) string {
	if !strings.Contains(s, placeholderToken) && !strings.Contains(s, placeholderExpires) {
		return s
	}

	if cfg.Secret == "" {
		s = strings.ReplaceAll(s, placeholderToken, "")
		return strings.ReplaceAll(s, placeholderExpires, "")
	}

	ttl := cfg.TokenTTLMinutes
	if ttl <= 0 {
		ttl = DefaultTokenTTLMinutes
	}
	expires := b.now().Add(time.Duration(ttl) * time.Minute).Unix()

	digest := strconv.FormatInt(expires, 10)
	if cfg.IncludeClientIP && clientIP != "" {
		digest += " " + clientIP
	}
	digest += " " + cfg.Secret

	sum := md5.Sum([]byte(digest))
	token := base64.RawURLEncoding.EncodeToString(sum[:])

	s = strings.ReplaceAll(s, placeholderToken, token)
	return strings.ReplaceAll(s, placeholderExpires, strconv.FormatInt(expires, 10))
}

// decodePlaceholders undoes percent-encoding that upstream storage may have
// applied to placeholder braces. Malformed encodings are swallowed: the value
// is used as originally given.
func decodePlaceholders(s string) string {
	if !strings.Contains(s, "%7B") && !strings.Contains(s, "%7b") {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// joinURL concatenates base and ref with exactly one separator between them.
func joinURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if base == "" {
		return "/" + ref
	}
	if strings.HasSuffix(base, "/") {
		return base + ref
	}
	return base + "/" + ref
}

// isAbsoluteURL reports whether s starts with a URL scheme.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}
