// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/messages"
)

// PassPrefix marks lines handed back to the host unchanged.
const PassPrefix = "PASS "

// ConnectionHandler handles a single TCP connection. The first line must be
// "connect <uuid> <name>"; the origin is the remote address.
type ConnectionHandler struct {
	netConn   net.Conn
	reader    *bufio.Reader
	gateway   *Gateway
	renderer  *messages.Renderer
	logger    *slog.Logger
	conn      auth.Connection
	connected bool
	quitting  bool
}

// NewConnectionHandler creates a new handler.
func NewConnectionHandler(netConn net.Conn, gateway *Gateway, renderer *messages.Renderer, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		netConn:  netConn,
		reader:   bufio.NewReader(netConn),
		gateway:  gateway,
		renderer: renderer,
		logger:   logger,
	}
}

// Handle processes the connection until it closes or ctx is cancelled.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	done := make(chan struct{})
	defer func() {
		close(done)
		if h.connected {
			h.gateway.Disconnect(h.conn)
		}
		if err := h.netConn.Close(); err != nil {
			h.logger.Debug("error closing connection", "error", err)
		}
	}()

	lineCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("connection read error", "remote", h.remoteHost(), "error", err)
			}
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}
		}
	}
}

func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	if line == "" {
		return
	}
	verb, rest := splitVerb(line)

	if !h.connected {
		if verb != "connect" {
			h.send("Use: connect <uuid> <name>")
			return
		}
		h.handleConnect(ctx, rest)
		return
	}

	switch verb {
	case "connect":
		h.send("Already connected.")
	case "quit":
		h.quitting = true
	case "say", "pose":
		h.handleOutcome(h.gateway.Act(h.conn, ActionChat), line)
	case "go", "move":
		h.handleOutcome(h.gateway.Act(h.conn, ActionMove), line)
	case "inventory", "inv", "i":
		h.handleOutcome(h.gateway.Act(h.conn, ActionInventory), line)
	default:
		h.handleOutcome(h.gateway.Command(ctx, h.conn, line, false), line)
	}
}

func (h *ConnectionHandler) handleConnect(ctx context.Context, arg string) {
	idText, name := splitVerb(arg)
	id, err := uuid.Parse(idText)
	if err != nil || name == "" {
		h.send("Use: connect <uuid> <name>")
		return
	}

	h.conn = auth.Connection{ID: id, DisplayName: name, Origin: h.remoteHost()}
	h.connected = true
	h.handleOutcome(h.gateway.Connect(ctx, h.conn), "")
}

func (h *ConnectionHandler) handleOutcome(out Outcome, line string) {
	for _, r := range out.Replies {
		h.send(h.renderer.Render(r))
	}
	if out.Passed && line != "" {
		h.send(PassPrefix + line)
	}
}

func (h *ConnectionHandler) remoteHost() string {
	addr := h.netConn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (h *ConnectionHandler) send(msg string) {
	if _, err := fmt.Fprintln(h.netConn, msg); err != nil {
		h.logger.Debug("failed to send message to client", "remote", h.remoteHost(), "error", err)
	}
}

// splitVerb splits a line into its lower-cased first word and the rest.
func splitVerb(line string) (verb, rest string) {
	line = strings.TrimSpace(line)
	verb, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}
