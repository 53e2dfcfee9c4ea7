package pipe

import "strings"

// EndpointPrefix is prepended to the runtime id to name the endpoint.
const EndpointPrefix = ".pipe-"

// EndpointName derives the endpoint name from the runtime id shared by host and backend.
func EndpointName(runtimeID string) string {
	return EndpointPrefix + strings.TrimSpace(runtimeID)
}
