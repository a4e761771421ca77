package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/auth"
	"github.com/marmos91/fileshare/pkg/protocol"
	"github.com/marmos91/fileshare/pkg/store"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 4
)

// requireAdmin gates the admin command family.
func (d *Dispatcher) requireAdmin(ctx context.Context, sess *Session, op string) *response {
	if d.engine.Store.IsAdmin(ctx, sess.UserID) {
		return nil
	}
	d.logActivity(ctx, sess.UserID, store.ActionAccessDenied, fmt.Sprintf("admin operation %s", op))
	r := errResp("Admin privileges required")
	return &r
}

func (d *Dispatcher) handleAdminListUsers(ctx context.Context, sess *Session, _ []byte) response {
	if resp := d.requireAdmin(ctx, sess, "list users"); resp != nil {
		return *resp
	}

	users, err := d.engine.Store.ListUsers(ctx)
	if err != nil {
		logger.Error("list users failed", logger.Err(err))
		return errResp("Failed to list users")
	}

	entries := make([]userEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, userEntry{
			ID:        u.ID,
			Username:  u.Username,
			IsAdmin:   boolToInt(u.IsAdmin),
			IsActive:  boolToInt(u.IsActive),
			CreatedAt: formatTime(u.CreatedAt),
		})
	}

	d.logActivity(ctx, sess.UserID, store.ActionAdminList, "Listed users")
	return jsonResp(protocol.CmdSuccess, adminListResponse{Status: statusOK, Users: entries})
}

func (d *Dispatcher) handleAdminCreateUser(ctx context.Context, sess *Session, payload []byte) response {
	if resp := d.requireAdmin(ctx, sess, "create user"); resp != nil {
		return *resp
	}

	var req adminCreateUserRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if len(req.Username) < minUsernameLen || len(req.Username) > maxUsernameLen {
		return errResp("Username must be 3-32 characters")
	}
	if len(req.Password) < minPasswordLen {
		return errResp("Password must be at least 4 characters")
	}

	id, err := d.engine.Store.CreateUser(ctx, req.Username, auth.HashPassword(req.Password), req.IsAdmin != 0)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return errResp("Username already exists")
		}
		logger.Error("create user failed", logger.Username(req.Username), logger.Err(err))
		return errResp("Failed to create user")
	}

	d.logActivity(ctx, sess.UserID, store.ActionAdminCreate,
		fmt.Sprintf("Created user %s", req.Username))
	logger.Info("user created", logger.Username(req.Username), logger.UserID(id))

	return jsonResp(protocol.CmdSuccess, adminCreateUserResponse{Status: statusOK, UserID: id})
}

func (d *Dispatcher) handleAdminDeleteUser(ctx context.Context, sess *Session, payload []byte) response {
	if resp := d.requireAdmin(ctx, sess, "delete user"); resp != nil {
		return *resp
	}

	var req adminDeleteUserRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if req.UserID == sess.UserID {
		return errResp("Cannot delete yourself")
	}

	if err := d.engine.Store.DeleteUser(ctx, req.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrProtectedUser):
			return errResp("Cannot delete primary admin")
		case errors.Is(err, store.ErrUserNotFound):
			return errResp("User not found")
		default:
			logger.Error("delete user failed", logger.UserID(req.UserID), logger.Err(err))
			return errResp("Failed to delete user")
		}
	}

	d.logActivity(ctx, sess.UserID, store.ActionAdminDelete,
		fmt.Sprintf("Deleted user %d", req.UserID))
	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}

func (d *Dispatcher) handleAdminUpdateUser(ctx context.Context, sess *Session, payload []byte) response {
	if resp := d.requireAdmin(ctx, sess, "update user"); resp != nil {
		return *resp
	}

	var req adminUpdateUserRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	if err := d.engine.Store.UpdateUser(ctx, req.UserID, req.IsAdmin != 0, req.IsActive != 0); err != nil {
		switch {
		case errors.Is(err, store.ErrProtectedUser):
			return errResp("Cannot remove admin rights from primary admin")
		case errors.Is(err, store.ErrUserNotFound):
			return errResp("User not found")
		default:
			logger.Error("update user failed", logger.UserID(req.UserID), logger.Err(err))
			return errResp("Failed to update user")
		}
	}

	d.logActivity(ctx, sess.UserID, store.ActionAdminUpdate,
		fmt.Sprintf("Updated user %d (admin=%d active=%d)", req.UserID, req.IsAdmin, req.IsActive))
	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}
