// Package api defines the wire types for the OpenResponses protocol: content
// parts, items, tools, the response resource, and streaming events.
//
// Every union type decodes totally: a recognized discriminator dispatches to
// the matching variant, an unrecognized one is preserved as an opaque
// unknown variant (raw type tag plus raw payload) so that newer server
// versions never break older clients. Fields the client does not know about
// are retained on decode and written back on encode.
package api
