// ABOUTME: UDP receiver feeding I/Q datagrams to the spectrum analyzer
// ABOUTME: Datagrams starting with '#' are text commands for the control plane
package iqstream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
)

const (
	DefaultPort = 50001

	// ControlMarker prefixes command datagrams
	ControlMarker = '#'

	maxDatagram = 65536
)

// Sink consumes I/Q datagrams
type Sink interface {
	Ingest(b []byte) error
}

// Commander executes a control command and returns the reply text
type Commander interface {
	Execute(cmd string) string
}

// Stats counts receiver traffic
type Stats struct {
	Datagrams uint64
	Commands  uint64
	Rejected  uint64
}

// Receiver reads datagrams on a single goroutine
type Receiver struct {
	sink  Sink
	ctrl  Commander
	debug bool

	datagrams atomic.Uint64
	commands  atomic.Uint64
	rejected  atomic.Uint64
}

// NewReceiver creates a receiver. ctrl may be nil, in which case command
// datagrams are discarded.
func NewReceiver(sink Sink, ctrl Commander, debug bool) *Receiver {
	return &Receiver{
		sink:  sink,
		ctrl:  ctrl,
		debug: debug,
	}
}

// Listen binds addr with address reuse where the platform allows it
func Listen(ctx context.Context, addr string) (*net.UDPConn, error) {
	return listen(ctx, addr)
}

// Run listens on addr and serves until ctx is cancelled
func (r *Receiver) Run(ctx context.Context, addr string) error {
	conn, err := Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to open I/Q socket: %w", err)
	}
	return r.Serve(ctx, conn)
}

// Serve reads from conn until ctx is cancelled. It closes conn.
func (r *Receiver) Serve(ctx context.Context, conn *net.UDPConn) error {
	log.Printf("I/Q receiver listening on %s", conn.LocalAddr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Printf("I/Q receiver stopped")
				return nil
			}
			log.Printf("I/Q receiver read error: %v", err)
			continue
		}
		r.handle(conn, from, buf[:n])
	}
}

func (r *Receiver) handle(conn *net.UDPConn, from *net.UDPAddr, pkt []byte) {
	if len(pkt) > 0 && pkt[0] == ControlMarker {
		r.commands.Add(1)
		if r.ctrl == nil {
			return
		}
		reply := r.ctrl.Execute(string(pkt[1:]))
		if reply == "" {
			return
		}
		if _, err := conn.WriteToUDP([]byte(reply), from); err != nil {
			log.Printf("I/Q receiver: failed to reply to %s: %v", from, err)
		}
		return
	}

	r.datagrams.Add(1)
	if err := r.sink.Ingest(pkt); err != nil {
		r.rejected.Add(1)
		if r.debug {
			log.Printf("[DEBUG] I/Q receiver: %v from %s", err, from)
		}
	}
}

// Stats returns traffic counters
func (r *Receiver) Stats() Stats {
	return Stats{
		Datagrams: r.datagrams.Load(),
		Commands:  r.commands.Load(),
		Rejected:  r.rejected.Load(),
	}
}
