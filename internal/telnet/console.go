// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/messages"
)

// Console drives many identities from one line stream, for operators and
// scripted testing:
//
//	connect <uuid> <name> <origin>
//	disconnect <uuid>
//	chat|move|inventory <uuid> [text]
//	cmd <uuid> <line>
//	admin <uuid> <line>
type Console struct {
	gateway  *Gateway
	renderer *messages.Renderer
	logger   *slog.Logger
	conns    map[uuid.UUID]auth.Connection
}

// NewConsole creates a console over gateway.
func NewConsole(gateway *Gateway, renderer *messages.Renderer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		gateway:  gateway,
		renderer: renderer,
		logger:   logger,
		conns:    make(map[uuid.UUID]auth.Connection),
	}
}

// Run reads lines from in until EOF or ctx is cancelled. Connections still
// open at the end are disconnected.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() {
		for _, conn := range c.conns {
			c.gateway.Disconnect(conn)
		}
		clear(c.conns)
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		c.Exec(ctx, scanner.Text(), out)
	}
	if err := scanner.Err(); err != nil {
		return oops.Code("CONSOLE_READ_FAILED").Wrap(err)
	}
	return nil
}

// Exec handles a single console line.
func (c *Console) Exec(ctx context.Context, line string, out io.Writer) {
	verb, rest := splitVerb(line)
	if verb == "" || strings.HasPrefix(verb, "#") {
		return
	}

	idText, args := splitVerb(rest)
	id, err := uuid.Parse(idText)
	if err != nil {
		c.write(out, "", "error: expected a uuid after "+verb)
		return
	}

	if verb == "connect" {
		c.connect(ctx, id, args, out)
		return
	}

	conn, ok := c.conns[id]
	if !ok {
		c.write(out, "", "error: not connected: "+id.String())
		return
	}

	switch verb {
	case "disconnect":
		c.gateway.Disconnect(conn)
		delete(c.conns, id)
		c.write(out, conn.DisplayName, "disconnected")
	case "chat":
		c.outcome(out, conn, c.gateway.Act(conn, ActionChat))
	case "move":
		c.outcome(out, conn, c.gateway.Act(conn, ActionMove))
	case "inventory":
		c.outcome(out, conn, c.gateway.Act(conn, ActionInventory))
	case "cmd":
		c.outcome(out, conn, c.gateway.Command(ctx, conn, args, false))
	case "admin":
		c.outcome(out, conn, c.gateway.Command(ctx, conn, args, true))
	default:
		c.write(out, "", "error: unknown console verb "+verb)
	}
}

func (c *Console) connect(ctx context.Context, id uuid.UUID, args string, out io.Writer) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		c.write(out, "", "error: usage: connect <uuid> <name> <origin>")
		return
	}
	if existing, ok := c.conns[id]; ok {
		c.gateway.Disconnect(existing)
	}

	conn := auth.Connection{ID: id, DisplayName: fields[0], Origin: fields[1]}
	c.conns[id] = conn
	c.outcome(out, conn, c.gateway.Connect(ctx, conn))
}

func (c *Console) outcome(out io.Writer, conn auth.Connection, o Outcome) {
	for _, r := range o.Replies {
		c.write(out, conn.DisplayName, c.renderer.Render(r))
	}
	if o.Passed {
		c.write(out, conn.DisplayName, "allowed")
	}
}

func (c *Console) write(out io.Writer, name, msg string) {
	var err error
	if name == "" {
		_, err = fmt.Fprintln(out, msg)
	} else {
		_, err = fmt.Fprintf(out, "[%s] %s\n", name, msg)
	}
	if err != nil {
		c.logger.Debug("console write failed", "error", err)
	}
}
