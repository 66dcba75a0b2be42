// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/messages"
)

// Server is the TCP connection adapter.
type Server struct {
	addr     string
	listener net.Listener
	gateway  *Gateway
	renderer *messages.Renderer
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewServer creates a new TCP adapter.
func NewServer(addr string, gateway *Gateway, renderer *messages.Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		gateway:  gateway,
		renderer: renderer,
		logger:   logger,
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen binds the listen address. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	return nil
}

// Run serves connections and blocks until ctx is cancelled and every
// connection handler has returned.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()

	s.logger.Info("connection adapter started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.logger.Debug("error closing listener", "error", err)
		}
	}()

	defer s.wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}
		handler := NewConnectionHandler(conn, s.gateway, s.renderer, s.logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handler.Handle(ctx)
		}()
	}
}
