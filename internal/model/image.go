package model

import (
	"net/url"
	"strings"
	"time"
)

// ImageKind tells how an ImageReference has to be resolved.
type ImageKind string

const (
	ImagePlaceholder ImageKind = "placeholder" // bundled stock photo, never analysed
	ImageDirect      ImageKind = "direct"      // fetchable URL
	ImageIndirect    ImageKind = "indirect"    // token resolved through a prefix template
	ImageEmbedded    ImageKind = "embedded"    // data: URI carrying the bytes
)

const (
	// DefaultThumbnailPrefix turns a Drive file id into a displayable URL.
	DefaultThumbnailPrefix = "https://drive.google.com/thumbnail?id="
	// DefaultPlaceholderURL is shown until the first real capture arrives.
	DefaultPlaceholderURL = "https://images.unsplash.com/photo-1459411552884-841db9b3cc2a?q=80&w=2449&auto=format&fit=crop"

	placeholderHost = "images.unsplash.com"
)

// ImageReference points at the latest plant photo. It is never mutated,
// the refresher always replaces it with a new value.
type ImageReference struct {
	Kind      ImageKind `json:"kind"`
	URL       string    `json:"url"`
	Token     string    `json:"token,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Seq       uint64    `json:"seq"`
}

// Placeholder builds the default reference for u (DefaultPlaceholderURL if empty).
func Placeholder(u string) ImageReference {
	if strings.TrimSpace(u) == "" {
		u = DefaultPlaceholderURL
	}
	return ImageReference{Kind: ImagePlaceholder, URL: u}
}

// ResolveIndirect applies the fixed prefix template to an origin token.
// Pure string operation: a token that is already an absolute http(s) URL
// is used as a direct reference instead.
func ResolveIndirect(prefix, token string) ImageReference {
	token = strings.TrimSpace(token)
	if isAbsoluteHTTP(token) {
		return ImageReference{Kind: ImageDirect, URL: token}
	}
	if prefix == "" {
		prefix = DefaultThumbnailPrefix
	}
	return ImageReference{Kind: ImageIndirect, URL: prefix + token, Token: token}
}

// IsPlaceholder reports whether r must not be sent for analysis.
func (r ImageReference) IsPlaceholder() bool {
	if r.Kind == ImagePlaceholder || strings.TrimSpace(r.URL) == "" {
		return true
	}
	if u, err := url.Parse(r.URL); err == nil && strings.EqualFold(u.Host, placeholderHost) {
		return true
	}
	return false
}

func isAbsoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
