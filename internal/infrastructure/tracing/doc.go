/*
Package tracing provides lightweight request tracing for the widget host.

Each inbound request gets a span; outbound calls to the M.A.X. API open a
child span and forward the X-Trace-ID and X-Span-ID headers so both sides
of a conversation turn can be correlated in the logs.

# Usage

	tracer := tracing.New("maxwidget", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "max.chat")
	req.SetHeaders(tracing.Headers(ctx))
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Finished spans are buffered (1000) and logged by a single collector goroutine.
*/
package tracing
