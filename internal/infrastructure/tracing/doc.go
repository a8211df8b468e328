/*
Package tracing provides lightweight spans for HTTP requests and cell runs.

Spans carry a trace ID and a parent span ID through context.Context and are
logged through zap by a buffered collector once submitted. Trace context
crosses HTTP boundaries in the X-Trace-ID and X-Span-ID headers.

# Usage

	tracer := tracing.New("console", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "cell.run")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("cell_id", cell.String())

# Performance

Spans are buffered (1000 entries) and processed on one goroutine. A full
buffer drops spans instead of blocking the caller.
*/
package tracing
