//go:build !windows

package pipe

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// EndpointPath resolves name to a socket path under dir. An empty dir keeps the
// path relative to the working directory.
func EndpointPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func dialEndpoint(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}

// Listen opens the endpoint for the backend side. A stale socket left by a
// previous run is removed first.
func Listen(path string) (net.Listener, error) {
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&fs.ModeSocket == 0 {
			return nil, fmt.Errorf("pipe: %s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("pipe: remove stale socket: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("pipe: stat %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("pipe: listen %s: %w", path, err)
	}
	return ln, nil
}

func endpointExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&fs.ModeSocket != 0
}

// shutdownConn wakes any goroutine blocked on the socket without releasing the descriptor.
func shutdownConn(conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return conn.SetDeadline(aLongTimeAgo)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := raw.Control(func(fd uintptr) {
		opErr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	}); err != nil {
		return err
	}
	if errors.Is(opErr, unix.ENOTCONN) {
		return nil
	}
	return opErr
}
