package server

import (
	"encoding/json"
	"time"
)

// Request and response payload shapes. Unknown fields in requests are
// ignored; optional fields are pointers so "absent" and "zero" stay
// distinguishable.

const (
	statusOK    = "OK"
	statusReady = "READY"
	statusError = "ERROR"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status  string `json:"status"`
	UserID  int64  `json:"user_id"`
	IsAdmin int    `json:"is_admin"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type okResponse struct {
	Status string `json:"status"`
}

type listDirRequest struct {
	DirectoryID *int64 `json:"directory_id"`
}

type fileEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size"`
	Permissions uint32 `json:"permissions"`
	OwnerID     int64  `json:"owner_id"`
	Owner       string `json:"owner"`
}

type listDirResponse struct {
	Status string      `json:"status"`
	Files  []fileEntry `json:"files"`
}

type changeDirRequest struct {
	DirectoryID int64 `json:"directory_id"`
}

type dirResponse struct {
	Status      string `json:"status"`
	DirectoryID int64  `json:"directory_id"`
	Name        string `json:"name"`
}

type mkdirRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

type uploadRequest struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	ParentID *int64 `json:"parent_id"`
}

type uploadReadyResponse struct {
	Status string `json:"status"`
	FileID int64  `json:"file_id"`
	UUID   string `json:"uuid"`
}

type downloadRequest struct {
	FileID int64 `json:"file_id"`
}

type chmodRequest struct {
	FileID int64 `json:"file_id"`
	// Permissions is either a string of exactly three octal digits
	// ("644") or an integer in 0..0777.
	Permissions json.RawMessage `json:"permissions"`
}

type chmodResponse struct {
	Status         string `json:"status"`
	Permissions    uint32 `json:"permissions"`
	PermissionsStr string `json:"permissions_str"`
}

type deleteRequest struct {
	FileID int64 `json:"file_id"`
}

type fileInfoRequest struct {
	FileID int64 `json:"file_id"`
}

type fileInfoResponse struct {
	Status         string `json:"status"`
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ParentID       int64  `json:"parent_id"`
	Path           string `json:"path"`
	Size           int64  `json:"size"`
	IsDirectory    bool   `json:"is_directory"`
	Permissions    uint32 `json:"permissions"`
	PermissionsStr string `json:"permissions_str"`
	OwnerID        int64  `json:"owner_id"`
	Owner          string `json:"owner"`
	CreatedAt      string `json:"created_at"`
}

type searchRequest struct {
	Pattern     string `json:"pattern"`
	DirectoryID *int64 `json:"directory_id"`
	Recursive   bool   `json:"recursive"`
	Limit       int    `json:"limit"`
}

type searchResult struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ParentID    int64  `json:"parent_id"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	IsDirectory bool   `json:"is_directory"`
	Permissions uint32 `json:"permissions"`
	OwnerID     int64  `json:"owner_id"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"created_at"`
}

type searchResponse struct {
	Status  string         `json:"status"`
	Count   int            `json:"count"`
	Results []searchResult `json:"results"`
}

type renameRequest struct {
	FileID  int64  `json:"file_id"`
	NewName string `json:"new_name"`
}

type copyRequest struct {
	SourceID     int64  `json:"source_id"`
	DestParentID int64  `json:"dest_parent_id"`
	NewName      string `json:"new_name"`
}

type moveRequest struct {
	FileID      int64 `json:"file_id"`
	NewParentID int64 `json:"new_parent_id"`
}

type userEntry struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	IsAdmin   int    `json:"is_admin"`
	IsActive  int    `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type adminListResponse struct {
	Status string      `json:"status"`
	Users  []userEntry `json:"users"`
}

type adminCreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  int    `json:"is_admin"`
}

type adminCreateUserResponse struct {
	Status string `json:"status"`
	UserID int64  `json:"user_id"`
}

type adminDeleteUserRequest struct {
	UserID int64 `json:"user_id"`
}

type adminUpdateUserRequest struct {
	UserID   int64 `json:"user_id"`
	IsAdmin  int   `json:"is_admin"`
	IsActive int   `json:"is_active"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
