// Package client implements the HTTP and SSE client for the responses
// API: request construction, bearer auth, SSE frame assembly, typed event
// decoding, and the accumulator that folds a stream of events into one
// response resource.
//
// Decoding is total with respect to the wire protocol: unknown event
// kinds, item kinds, and content kinds are preserved as opaque payloads
// instead of failing the stream, so the client keeps working when the API
// adds variants.
package client
