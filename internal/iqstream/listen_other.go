//go:build !unix

// ABOUTME: Plain UDP listener for platforms without unix socket options
// ABOUTME: Same signature as the unix variant
package iqstream

import (
	"context"
	"fmt"
	"net"
)

func listen(ctx context.Context, addr string) (*net.UDPConn, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return conn.(*net.UDPConn), nil
}
