// Package client is the outbound HTTP client used by the stream relay.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport:
//   - transport-level retries with exponential backoff (PROXY_RETRY_MAX)
//   - a shared token bucket for outbound requests (PROXY_RPS, PROXY_BURST)
//   - one circuit breaker per upstream host
//   - unparsed, streamed response bodies
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultConfig(), logger)
//	resp, err := c.Stream(ctx, target, headers)
//	if err == nil {
//		defer resp.RawBody().Close()
//	}
package client
