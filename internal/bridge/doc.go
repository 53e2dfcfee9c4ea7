// Package bridge runs the host side of the host/backend contract over one multiplexed session.
//
// Ownership boundary:
// - Forwarder: one logical request per outbound stream, streamed response
// - Dispatcher: backend-initiated eval commands on inbound streams
// - Registry: eval id correlation between the dispatcher and the surface message channel
// - SurfaceGuard: serializes execution against surface teardown
// - Service: lifecycle, closing the session before the channel
package bridge
