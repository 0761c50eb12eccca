/*
Package tracing provides request correlation for debugging production issues.

Every HTTP request gets a trace ID (taken from X-Trace-ID when the caller
supplies one) and a span that is logged when the request completes. Detection
runs started by the request log their own run ID next to the trace ID, so one
grep follows a request from the router into the browser session.

# Usage

	tracer := tracing.New(logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "detect")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

  - X-Trace-ID: identifier for the whole request flow
  - X-Span-ID: identifier for the current operation

Spans are buffered (1000) and logged from one background goroutine.
*/
package tracing
