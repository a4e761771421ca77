package store

import (
	"context"
	"time"
)

// Activity action codes. One entry per successful (or denied) protocol
// operation.
const (
	ActionLogin        = "LOGIN"
	ActionListDir      = "LIST_DIR"
	ActionMakeDir      = "MAKE_DIR"
	ActionChangeDir    = "CHANGE_DIR"
	ActionUpload       = "UPLOAD"
	ActionDownload     = "DOWNLOAD"
	ActionChmod        = "CHMOD"
	ActionDelete       = "DELETE"
	ActionRename       = "RENAME"
	ActionCopy         = "COPY"
	ActionMove         = "MOVE"
	ActionSearch       = "SEARCH"
	ActionAccessDenied = "ACCESS_DENIED"
	ActionAdminList    = "ADMIN_LIST_USERS"
	ActionAdminCreate  = "ADMIN_CREATE_USER"
	ActionAdminDelete  = "ADMIN_DELETE_USER"
	ActionAdminUpdate  = "ADMIN_UPDATE_USER"
)

// LogActivity appends one audit entry. Failures are returned but callers
// typically only log them; the audit trail never blocks an operation.
func (s *Store) LogActivity(ctx context.Context, userID int64, action, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &ActivityLog{
		UserID:      userID,
		Action:      action,
		Description: description,
		CreatedAt:   time.Now(),
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// RecentActivity returns the newest entries, most recent first. Served by
// the ops surface, never by the protocol path. The limit defaults to 100
// and clamps to 1000.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []ActivityLog
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
