// Package backend is the backend end of the bridge contract: it answers forwarded
// fetch streams with an http.Handler and issues eval commands to the host.
package backend
