// Package txdata fetches the transaction sizes of a Bitcoin block.
//
// The upstream service answers a form POST carrying an API key and a block
// height with plain text: one non-negative decimal integer per line, one
// line per transaction. [Client] talks to that service with retries;
// [FileSource] reads the same format from disk for offline work and tests.
//
//	src := txdata.NewClient(url, apiKey)
//	values, err := src.Values(ctx, 840000)
//
// Both implement [Source], which is what the pipeline consumes.
package txdata
