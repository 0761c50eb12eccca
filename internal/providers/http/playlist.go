package http

import (
	"bufio"
	"bytes"
	"net/url"
	"regexp"
	"strings"
)

const playlistTag = "#EXTM3U"

// uriAttr matches the quoted URI attribute of tags such as EXT-X-KEY,
// EXT-X-MEDIA and EXT-X-MAP
var uriAttr = regexp.MustCompile(`URI="([^"]*)"`)

// IsPlaylist reports whether a response looks like an HLS playlist
func IsPlaylist(contentType string, target *url.URL, head []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(target.Path), ".m3u8") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(head, "\ufeff \t\r\n"), []byte(playlistTag))
}

// Rewriter routes playlist references back through the relay
type Rewriter struct {
	// ProxyPath is the relay endpoint, e.g. /api/proxy
	ProxyPath string
	// Referer is forwarded on every rewritten URL when set
	Referer string
}

// ProxyURL returns the relay URL for an absolute upstream URL
func (rw Rewriter) ProxyURL(abs string) string {
	q := url.Values{}
	q.Set("url", abs)
	if rw.Referer != "" {
		q.Set("referer", rw.Referer)
	}
	q.Set("rewrite", "1")
	return rw.ProxyPath + "?" + q.Encode()
}

// Rewrite resolves every URI line and URI attribute of playlist against
// base and replaces it with a relay URL. Non-http references such as data:
// or skd:// key URIs are left untouched.
func (rw Rewriter) Rewrite(playlist []byte, base *url.URL) []byte {
	var out bytes.Buffer
	out.Grow(len(playlist) + len(playlist)/2)

	scanner := bufio.NewScanner(bytes.NewReader(playlist))
	scanner.Buffer(make([]byte, 64*1024), len(playlist)+1)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			out.WriteString(line)
		case strings.HasPrefix(trimmed, "#"):
			out.WriteString(uriAttr.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttr.FindStringSubmatch(m)[1]
				if abs, ok := resolve(base, ref); ok {
					return `URI="` + rw.ProxyURL(abs) + `"`
				}
				return m
			}))
		default:
			if abs, ok := resolve(base, trimmed); ok {
				out.WriteString(rw.ProxyURL(abs))
			} else {
				out.WriteString(line)
			}
		}
		out.WriteByte('\n')
	}

	return out.Bytes()
}

// resolve returns ref as an absolute http(s) URL
func resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}
