// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware holds the cross-cutting HTTP pieces shared by every route.

The router wraps each API handler with Instrument, which layers WithMetrics
over WithLogging:

	mux.HandleFunc("POST /polls", middleware.Instrument(pollHandler.CreatePoll))

WithLogging emits a start and a finish line through slog. Both carry
request_id, taken from X-Request-ID when the caller sends one and otherwise a
fresh UUID; the ID is echoed back on the response. The finish line adds the
matched route pattern, status and duration_ms.

WithMetrics feeds two Prometheus collectors labelled by route pattern, so
/polls/abc and /polls/xyz share a series:

	polls_http_requests_total{method, route, status}
	polls_http_request_duration_seconds{method, route}

CORS wraps the whole mux in main. Every secret travels in a request header,
so it answers with a wildcard origin and never allows credentials. It
answers preflight requests itself and allows the X-Admin-Key, X-Voter-Token
and X-Site-Admin-Token headers.

Handlers read and write JSON through ParseJSONBody (bodies over 1 MiB are
refused), JSONResponse and ErrorResponse. GetClientIP picks the caller
address from X-Forwarded-For, X-Real-IP or RemoteAddr, in that order.
*/
package middleware
