package server

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/protocol"
)

// connection runs the request/response loop for a single client. The
// protocol is strictly half-duplex (one request, one response), so the
// loop is sequential and the session needs no locking.
type connection struct {
	server  *Server
	conn    net.Conn
	session *Session
}

// serve reads packets until the client disconnects, a framing error
// occurs, or the server shuts down.
func (c *connection) serve(ctx context.Context) {
	defer c.close()
	defer c.recoverPanic()

	clientAddr := c.conn.RemoteAddr().String()
	logger.Debug("new client connection",
		logger.ClientIP(clientAddr),
		logger.SessionID(c.session.ID))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("connection closed: context cancelled", logger.ClientIP(clientAddr))
			return
		case <-c.server.shutdown:
			logger.Debug("connection closed: server shutdown", logger.ClientIP(clientAddr))
			return
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			logger.Warn("failed to set read deadline", logger.ClientIP(clientAddr), logger.Err(err))
			return
		}

		pkt, err := protocol.ReadPacket(c.conn)
		if err != nil {
			c.logReadError(clientAddr, err)
			return
		}

		resp := c.server.dispatcher.Dispatch(ctx, c.session, pkt)

		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			logger.Warn("failed to set write deadline", logger.ClientIP(clientAddr), logger.Err(err))
			return
		}
		if err := protocol.WritePacket(c.conn, resp.cmd, resp.payload); err != nil {
			logger.Debug("failed to write response",
				logger.ClientIP(clientAddr),
				logger.Command(resp.cmd.String()),
				logger.Err(err))
			return
		}
	}
}

// logReadError classifies why the read loop ended. Everything here
// terminates the connection; the distinction only matters for logging.
func (c *connection) logReadError(clientAddr string, err error) {
	var netErr net.Error

	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("connection closed by client", logger.ClientIP(clientAddr))
	case errors.As(err, &netErr) && netErr.Timeout():
		select {
		case <-c.server.shutdown:
			logger.Debug("connection read interrupted by shutdown", logger.ClientIP(clientAddr))
		default:
			logger.Info("connection timed out", logger.ClientIP(clientAddr))
		}
	case errors.Is(err, protocol.ErrBadMagic), errors.Is(err, protocol.ErrPayloadTooLarge):
		// Framing is unrecoverable: the stream position is lost.
		logger.Warn("malformed packet, dropping connection",
			logger.ClientIP(clientAddr), logger.Err(err))
	default:
		logger.Debug("read error", logger.ClientIP(clientAddr), logger.Err(err))
	}
}

func (c *connection) recoverPanic() {
	if r := recover(); r != nil {
		logger.Error("panic in connection handler",
			logger.ClientIP(c.conn.RemoteAddr().String()),
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

func (c *connection) close() {
	c.session.State = StateDisconnected
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("error closing connection", logger.Err(err))
	}
}
