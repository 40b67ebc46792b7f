// ABOUTME: TCP listener for CAT/TCI clients, one goroutine per connection
// ABOUTME: Reads ';' terminated commands and writes the dispatcher replies
package control

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

const DefaultPort = 40000

// maxCommand bounds a single command before the connection is dropped
const maxCommand = 4096

// Server accepts control connections
type Server struct {
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server that executes commands with d
func NewServer(d *Dispatcher) *Server {
	return &Server{
		dispatcher: d,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen binds addr. Call Serve afterwards.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	log.Printf("Control server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("control server not listening")
	}

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				log.Printf("Control server stopped")
				return nil
			}
			log.Printf("Control server accept error: %v", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	peer := conn.RemoteAddr()
	log.Printf("Control client connected: %s", peer)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 256), maxCommand)
	scanner.Split(splitCommands)

	for scanner.Scan() {
		reply := s.dispatcher.Execute(scanner.Text())
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			log.Printf("Control client %s write error: %v", peer, err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("Control client %s read error: %v", peer, err)
	}
	log.Printf("Control client disconnected: %s", peer)
}

// splitCommands yields ';' terminated commands, dropping an unterminated tail at EOF
func splitCommands(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, ';'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
