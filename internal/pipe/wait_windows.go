//go:build windows

package pipe

import (
	"context"
	"fmt"
	"time"
)

const waitPollInterval = 100 * time.Millisecond

// WaitForEndpoint polls until the named pipe exists or ctx ends.
func WaitForEndpoint(ctx context.Context, path string) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for !endpointExists(path) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pipe: wait for %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
