package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultAddr is where serve listens without --listen.
const DefaultAddr = "127.0.0.1:8765"

// Listen opens a listener for addr. Supported forms are unix://PATH,
// npipe://NAME, fd://N, tcp://HOST:PORT and a bare HOST:PORT.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return listenUnix(ctx, strings.TrimPrefix(addr, "unix://"))
	case strings.HasPrefix(addr, "npipe://"):
		return listenNamedPipe(strings.TrimPrefix(addr, "npipe://"))
	case strings.HasPrefix(addr, "fd://"):
		fd, err := strconv.Atoi(strings.TrimPrefix(addr, "fd://"))
		if err != nil {
			return nil, fmt.Errorf("invalid file descriptor in %q: %w", addr, err)
		}
		return net.FileListener(os.NewFile(uintptr(fd), "listener"))
	}

	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", strings.TrimPrefix(addr, "tcp://"))
}

// URL returns a base URL for a listener, for display.
func URL(ln net.Listener) string {
	switch ln.Addr().Network() {
	case "tcp":
		return "http://" + ln.Addr().String()
	case "unix":
		return "unix://" + ln.Addr().String()
	default:
		return ln.Addr().Network() + "://" + ln.Addr().String()
	}
}

func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	return lc.Listen(ctx, "unix", path)
}
