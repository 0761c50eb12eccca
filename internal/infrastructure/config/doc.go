/*
Package config loads service configuration from environment variables.

Every field has a default, so the service starts with an empty environment.
Command-line flags in cmd/server take precedence over the values loaded here.

# Environment Variables

Server:
  - PORT, HOST: listen address (default 0.0.0.0:3333)
  - PLAYER_HTML: page served at / when the file exists

Browser:
  - BROWSER_ENABLED: set false to run without a browser engine
  - BROWSER_BIN: browser executable; looked up on PATH when empty
  - BROWSER_NO_SANDBOX: pass --no-sandbox (needed in most containers)
  - BROWSER_MAX_SESSIONS, BROWSER_QUEUE_TIMEOUT: admission control
  - BROWSER_USER_AGENT: user agent presented to target pages
  - BROWSER_TRIGGERS_FILE: YAML file with extra play-control selectors

Detect (milliseconds):
  - DETECT_TIMEOUT_MS, DETECT_SETTLE_MS: per-request defaults
  - DETECT_TRIGGER_TIMEOUT_MS, DETECT_FALLBACK_WAIT_MS: interaction budgets
  - DETECT_MAX_TIMEOUT_MS, DETECT_MAX_SETTLE_MS: caps on request values

Proxy:
  - PROXY_ALLOW_INSECURE: relay plain http upstreams
  - PROXY_TIMEOUT, PROXY_RETRY_MAX: upstream client behavior
  - PROXY_RPS, PROXY_BURST: outbound rate limit
  - PROXY_MAX_PLAYLIST_BYTES: size cap for playlists rewritten in memory

Logging: LOG_LEVEL, LOG_DEV. Rate limiting: RATE_LIMIT_RPS,
RATE_LIMIT_BURST, RATE_LIMIT_ENABLED.
*/
package config
