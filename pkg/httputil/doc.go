// Package httputil provides HTTP utilities shared by the upstream block data
// client and the scene media loader.
//
// # Overview
//
//   - [Retry]: bounded retries with exponential backoff under a [Policy]
//   - [CheckStatus], [CheckResponse]: response classification into coded errors
//   - [TransportError]: round-trip failure classification
//   - [NewClient]: an *http.Client with a bounded timeout
//
// # Retry
//
// Whether a failure is retried depends only on its pkg/errors code:
// NETWORK_ERROR (transport failures, 5xx), TIMEOUT and RATE_LIMITED are
// retried, everything else (NOT_FOUND, UNAUTHORIZED, bad input, context
// cancellation) is returned on the first attempt. A 429 with a Retry-After
// header waits at least that long.
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.TransportError(ctx, err, "fetch block %d", height)
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckResponse(resp)
//	})
//
// [DefaultPolicy] makes 3 attempts starting at a 1 second backoff, capped at
// 30 seconds per wait.
package httputil
