// Package pipe is the duplex byte channel between the host and the backend.
//
// Ownership boundary:
// - endpoint naming and the platform transport (unix socket / windows named pipe)
// - Client: one connection with independent read and write critical sections
// - Conn: io.ReadWriteCloser over a Client for the session layer
// - dial retry and waiting for the endpoint to appear
//
// Nothing here reconnects; the caller owns retry policy through DialRetry.
package pipe
