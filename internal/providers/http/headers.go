package http

import (
	"net/url"

	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
)

// DefaultUserAgent is the desktop Chrome identity presented to upstreams,
// the same one the browser sessions use
const DefaultUserAgent = detect.DefaultUserAgent

// Origin returns scheme://host of u
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// UpstreamHeaders builds the browser-like headers sent upstream. The
// Referer and Origin normally point at the stream's own origin; a valid
// absolute referer overrides it for CDNs that check the embedding site.
func UpstreamHeaders(target *url.URL, referer, userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	origin := Origin(target)
	if ref, err := url.Parse(referer); err == nil && ref.Host != "" && (ref.Scheme == "http" || ref.Scheme == "https") {
		origin = Origin(ref)
	}

	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "*/*",
		"Referer":    origin + "/",
		"Origin":     origin,
	}
}
