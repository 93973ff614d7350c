//go:build !windows

package server

import (
	"errors"
	"net"
)

var errNoPipes = errors.New("npipe:// addresses are only available on Windows")

func listenNamedPipe(string) (net.Listener, error) {
	return nil, errNoPipes
}
