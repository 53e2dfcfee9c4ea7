// Package protocol owns the message schemas spoken between the host and the backend.
//
// Ownership boundary:
// - fetch request/response envelopes
// - eval command/result messages
// - host init control message and its base64 transport
//
// Field primitives live in protocol/wire; stream framing lives in protocol/frame.
package protocol
