//go:build windows

package pipe

import (
	"fmt"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
)

const pipeRoot = `\\.\pipe\`

// EndpointPath maps name into the named pipe namespace. dir is ignored.
func EndpointPath(_ string, name string) string {
	return pipeRoot + name
}

func dialEndpoint(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}

// Listen opens the named pipe for the backend side.
func Listen(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("pipe: listen %s: %w", path, err)
	}
	return ln, nil
}

func endpointExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Named pipes have no shutdown; an expired deadline cancels pending I/O instead.
func shutdownConn(conn net.Conn) error {
	return conn.SetDeadline(aLongTimeAgo)
}
