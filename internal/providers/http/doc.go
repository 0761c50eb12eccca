/*
Package http implements the stream relay: a stateless proxy that fetches a
playlist or segment with browser-like headers and hands it to any page with
permissive CORS headers.

# Request Headers

Upstream requests carry a desktop Chrome User-Agent, Accept: *\/*, and an
Origin and Referer derived from the stream URL (or from the caller-supplied
referer when a CDN checks the embedding site).

# Playlist Rewriting

With rewrite enabled, playlists are buffered (up to PROXY_MAX_PLAYLIST_BYTES)
and every URI line and URI="..." attribute is resolved against the playlist
URL and pointed back at the relay, so variants, segments, keys and init
sections all travel through it.

# Errors

  - missing or malformed url: 400
  - plain http while PROXY_ALLOW_INSECURE is off: 400
  - upstream host breaker open: 503
  - upstream transport failure: 500

Upstream HTTP statuses are relayed unchanged.
*/
package http
