package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/protocol"
	"github.com/marmos91/fileshare/pkg/store"
)

// response is the single packet a handler produces.
type response struct {
	cmd     protocol.Command
	payload []byte
}

// jsonResp marshals v as the payload of cmd.
func jsonResp(cmd protocol.Command, v any) response {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal response payload", logger.Err(err))
		return errResp("Internal server error")
	}
	return response{cmd: cmd, payload: payload}
}

// errResp builds the uniform error packet. Internal detail stays in the
// server log; clients only see the message.
func errResp(msg string) response {
	payload, _ := json.Marshal(errorResponse{Status: statusError, Message: msg})
	return response{cmd: protocol.CmdError, payload: payload}
}

// Dispatcher routes one request packet to its handler and produces exactly
// one response packet.
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher creates a dispatcher over the engine.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch handles one packet for the session.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, pkt *protocol.Packet) response {
	start := time.Now()
	resp := d.route(ctx, sess, pkt)
	d.engine.Metrics.ObserveRequest(pkt.Command.String(), time.Since(start), resp.cmd == protocol.CmdError)
	return resp
}

func (d *Dispatcher) route(ctx context.Context, sess *Session, pkt *protocol.Packet) response {
	cmd := pkt.Command

	// Only login-request crosses the auth gate.
	if cmd == protocol.CmdLoginRequest {
		return d.handleLogin(ctx, sess, pkt.Payload)
	}
	if !sess.Authenticated() {
		return errResp("Not authenticated")
	}

	// upload-data is only valid while a transfer is pending.
	if cmd == protocol.CmdUploadData {
		if sess.State != StateTransferring {
			return errResp("No upload in progress")
		}
		return d.handleUploadData(ctx, sess, pkt.Payload)
	}

	switch cmd {
	case protocol.CmdListDir:
		return d.handleListDir(ctx, sess, pkt.Payload)
	case protocol.CmdChangeDir:
		return d.handleChangeDir(ctx, sess, pkt.Payload)
	case protocol.CmdMkdir:
		return d.handleMkdir(ctx, sess, pkt.Payload)
	case protocol.CmdUploadRequest:
		return d.handleUploadRequest(ctx, sess, pkt.Payload)
	case protocol.CmdDownloadRequest:
		return d.handleDownload(ctx, sess, pkt.Payload)
	case protocol.CmdDelete:
		return d.handleDelete(ctx, sess, pkt.Payload)
	case protocol.CmdChmod:
		return d.handleChmod(ctx, sess, pkt.Payload)
	case protocol.CmdFileInfo:
		return d.handleFileInfo(ctx, sess, pkt.Payload)
	case protocol.CmdSearchRequest:
		return d.handleSearch(ctx, sess, pkt.Payload)
	case protocol.CmdRename:
		return d.handleRename(ctx, sess, pkt.Payload)
	case protocol.CmdCopy:
		return d.handleCopy(ctx, sess, pkt.Payload)
	case protocol.CmdMove:
		return d.handleMove(ctx, sess, pkt.Payload)
	case protocol.CmdAdminListUsers:
		return d.handleAdminListUsers(ctx, sess, pkt.Payload)
	case protocol.CmdAdminCreateUser:
		return d.handleAdminCreateUser(ctx, sess, pkt.Payload)
	case protocol.CmdAdminDeleteUser:
		return d.handleAdminDeleteUser(ctx, sess, pkt.Payload)
	case protocol.CmdAdminUpdateUser:
		return d.handleAdminUpdateUser(ctx, sess, pkt.Payload)
	default:
		logger.Warn("unknown command", logger.Command(cmd.String()), logger.SessionID(sess.ID))
		return errResp("Unknown command")
	}
}

// denied logs the refused access and produces the uniform error.
func (d *Dispatcher) denied(ctx context.Context, sess *Session, detail string) response {
	if err := d.engine.Store.LogActivity(ctx, sess.UserID, store.ActionAccessDenied, detail); err != nil {
		logger.Warn("failed to record activity", logger.Err(err))
	}
	return errResp("Permission denied")
}

// logActivity appends an audit entry; failures never block the operation.
func (d *Dispatcher) logActivity(ctx context.Context, userID int64, action, detail string) {
	if err := d.engine.Store.LogActivity(ctx, userID, action, detail); err != nil {
		logger.Warn("failed to record activity", logger.Err(err))
	}
}
