package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/auth"
	"github.com/marmos91/fileshare/pkg/blob"
	"github.com/marmos91/fileshare/pkg/perm"
	"github.com/marmos91/fileshare/pkg/protocol"
	"github.com/marmos91/fileshare/pkg/store"
)

const maxNameLen = 255

func (d *Dispatcher) handleLogin(ctx context.Context, sess *Session, payload []byte) response {
	var req loginRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if req.Username == "" || req.Password == "" {
		return errResp("Invalid request")
	}

	user, err := d.engine.Store.VerifyUser(ctx, req.Username, auth.HashPassword(req.Password))
	if err != nil {
		logger.Info("login failed", logger.Username(req.Username), logger.SessionID(sess.ID))
		return errResp("Invalid credentials")
	}

	sess.Login(user.ID)
	d.logActivity(ctx, user.ID, store.ActionLogin, fmt.Sprintf("User %s logged in", user.Username))
	logger.Info("login", logger.Username(user.Username), logger.UserID(user.ID), logger.SessionID(sess.ID))

	return jsonResp(protocol.CmdLoginResponse, loginResponse{
		Status:  statusOK,
		UserID:  user.ID,
		IsAdmin: boolToInt(user.IsAdmin),
	})
}

// resolveDir checks that id refers to an existing directory. The root
// always passes.
func (d *Dispatcher) resolveDir(ctx context.Context, id int64) (name string, err error) {
	if id == perm.RootDirID {
		return "/", nil
	}
	f, err := d.engine.Store.GetFile(ctx, id)
	if err != nil {
		return "", errors.New("Directory not found")
	}
	if !f.IsDirectory {
		return "", errors.New("Not a directory")
	}
	return f.Name, nil
}

func (d *Dispatcher) handleListDir(ctx context.Context, sess *Session, payload []byte) response {
	var req listDirRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	dirID := sess.CurrentDir
	if req.DirectoryID != nil {
		dirID = *req.DirectoryID
	}

	if _, err := d.resolveDir(ctx, dirID); err != nil {
		return errResp(err.Error())
	}
	if !d.engine.Perms.May(ctx, sess.UserID, dirID, perm.Read) {
		return d.denied(ctx, sess, fmt.Sprintf("list directory %d", dirID))
	}

	files, err := d.engine.Store.ListDirectory(ctx, dirID)
	if err != nil {
		logger.Error("list directory failed", logger.FileID(dirID), logger.Err(err))
		return errResp("Failed to list directory")
	}

	entries := make([]fileEntry, 0, len(files))
	owners := map[int64]string{}
	for _, f := range files {
		entries = append(entries, fileEntry{
			ID:          f.ID,
			Name:        f.Name,
			IsDirectory: f.IsDirectory,
			Size:        f.Size,
			Permissions: f.Permissions,
			OwnerID:     f.OwnerID,
			Owner:       d.ownerName(ctx, owners, f.OwnerID),
		})
	}

	d.logActivity(ctx, sess.UserID, store.ActionListDir, fmt.Sprintf("Listed directory %d", dirID))
	return jsonResp(protocol.CmdListDir, listDirResponse{Status: statusOK, Files: entries})
}

// ownerName resolves a user id to its username with a per-request cache.
// Records owned by deleted users show as "unknown".
func (d *Dispatcher) ownerName(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name, err := d.engine.Store.GetUsername(ctx, id)
	if err != nil {
		name = "unknown"
	}
	cache[id] = name
	return name
}

func (d *Dispatcher) handleChangeDir(ctx context.Context, sess *Session, payload []byte) response {
	var req changeDirRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	name, err := d.resolveDir(ctx, req.DirectoryID)
	if err != nil {
		return errResp(err.Error())
	}
	if !d.engine.Perms.May(ctx, sess.UserID, req.DirectoryID, perm.Execute) {
		return d.denied(ctx, sess, fmt.Sprintf("change into directory %d", req.DirectoryID))
	}

	sess.CurrentDir = req.DirectoryID
	d.logActivity(ctx, sess.UserID, store.ActionChangeDir, fmt.Sprintf("Changed to directory %s", name))

	return jsonResp(protocol.CmdSuccess, dirResponse{
		Status:      statusOK,
		DirectoryID: req.DirectoryID,
		Name:        name,
	})
}

func (d *Dispatcher) handleMkdir(ctx context.Context, sess *Session, payload []byte) response {
	var req mkdirRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if req.Name == "" || len(req.Name) > maxNameLen {
		return errResp("Invalid directory name")
	}

	parentID := sess.CurrentDir
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	if _, err := d.resolveDir(ctx, parentID); err != nil {
		return errResp(err.Error())
	}
	if !d.engine.Perms.May(ctx, sess.UserID, parentID, perm.Write) {
		return d.denied(ctx, sess, fmt.Sprintf("create directory in %d", parentID))
	}

	id, err := d.engine.Store.CreateFile(ctx, store.File{
		ParentID:    parentID,
		Name:        req.Name,
		OwnerID:     sess.UserID,
		IsDirectory: true,
		Permissions: perm.DefaultDirMode,
	})
	if err != nil {
		logger.Error("mkdir failed", logger.Filename(req.Name), logger.Err(err))
		return errResp("Failed to create directory")
	}

	d.logActivity(ctx, sess.UserID, store.ActionMakeDir, fmt.Sprintf("Created directory %s", req.Name))
	return jsonResp(protocol.CmdSuccess, dirResponse{
		Status:      statusOK,
		DirectoryID: id,
		Name:        req.Name,
	})
}

func (d *Dispatcher) handleUploadRequest(ctx context.Context, sess *Session, payload []byte) response {
	var req uploadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if req.Name == "" || len(req.Name) > maxNameLen {
		return errResp("Invalid file name")
	}
	if req.Size < 0 || req.Size > protocol.MaxPayloadSize {
		return errResp("Invalid file size")
	}

	parentID := sess.CurrentDir
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	if _, err := d.resolveDir(ctx, parentID); err != nil {
		return errResp(err.Error())
	}
	if !d.engine.Perms.May(ctx, sess.UserID, parentID, perm.Write) {
		return d.denied(ctx, sess, fmt.Sprintf("upload into directory %d", parentID))
	}

	blobID := blob.NewID()
	fileID, err := d.engine.Store.CreateFile(ctx, store.File{
		ParentID:    parentID,
		Name:        req.Name,
		BlobRef:     blobID,
		OwnerID:     sess.UserID,
		Size:        req.Size,
		Permissions: perm.DefaultFileMode,
	})
	if err != nil {
		logger.Error("upload metadata creation failed", logger.Filename(req.Name), logger.Err(err))
		return errResp("Failed to create file")
	}

	sess.BeginUpload(&PendingUpload{
		FileID:   fileID,
		BlobID:   blobID,
		Size:     req.Size,
		Filename: req.Name,
	})

	return jsonResp(protocol.CmdSuccess, uploadReadyResponse{
		Status: statusReady,
		FileID: fileID,
		UUID:   blobID,
	})
}

func (d *Dispatcher) handleUploadData(ctx context.Context, sess *Session, payload []byte) response {
	pending := sess.Pending
	// The descriptor is cleared whatever happens; a failed upload leaves
	// the metadata row behind as a phantom entry.
	defer sess.EndUpload()

	if int64(len(payload)) != pending.Size {
		logger.Warn("upload size mismatch",
			logger.Filename(pending.Filename),
			logger.Size(pending.Size),
			logger.Bytes(int64(len(payload))))
		return errResp(fmt.Sprintf("Size mismatch. Expected %d bytes, got %d bytes", pending.Size, len(payload)))
	}

	if err := d.engine.Blobs.Write(ctx, pending.BlobID, payload); err != nil {
		logger.Error("blob write failed", logger.BlobID(pending.BlobID), logger.Err(err))
		return errResp("Failed to store file")
	}

	d.engine.Metrics.AddUploadedBytes(int64(len(payload)))
	d.logActivity(ctx, sess.UserID, store.ActionUpload,
		fmt.Sprintf("Uploaded file %s (%d bytes)", pending.Filename, len(payload)))
	logger.Info("upload complete",
		logger.Filename(pending.Filename),
		logger.FileID(pending.FileID),
		logger.Bytes(pending.Size))

	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}

func (d *Dispatcher) handleDownload(ctx context.Context, sess *Session, payload []byte) response {
	var req downloadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	f, err := d.engine.Store.GetFile(ctx, req.FileID)
	if err != nil {
		return errResp("File not found")
	}
	if f.IsDirectory {
		return errResp("Cannot download a directory")
	}
	if !d.engine.Perms.May(ctx, sess.UserID, f.ID, perm.Read) {
		return d.denied(ctx, sess, fmt.Sprintf("download file %d", f.ID))
	}

	data, err := d.engine.Blobs.Read(ctx, f.BlobRef)
	if err != nil {
		logger.Error("blob read failed", logger.FileID(f.ID), logger.BlobID(f.BlobRef), logger.Err(err))
		return errResp("Failed to read file")
	}

	d.engine.Metrics.AddDownloadedBytes(int64(len(data)))
	d.logActivity(ctx, sess.UserID, store.ActionDownload,
		fmt.Sprintf("Downloaded file %s (%d bytes)", f.Name, len(data)))

	// Success is the raw body; there is no trailing status packet.
	return response{cmd: protocol.CmdDownloadResponse, payload: data}
}

func (d *Dispatcher) handleChmod(ctx context.Context, sess *Session, payload []byte) response {
	var req chmodRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	bits, err := parsePermissions(req.Permissions)
	if err != nil {
		return errResp("Invalid permissions")
	}

	f, err := d.engine.Store.GetFile(ctx, req.FileID)
	if err != nil {
		return errResp("File not found")
	}
	if f.OwnerID != sess.UserID {
		return d.denied(ctx, sess, fmt.Sprintf("chmod file %d", f.ID))
	}

	if err := d.engine.Store.SetPermissions(ctx, f.ID, bits); err != nil {
		logger.Error("chmod failed", logger.FileID(f.ID), logger.Err(err))
		return errResp("Failed to change permissions")
	}

	d.logActivity(ctx, sess.UserID, store.ActionChmod,
		fmt.Sprintf("Changed permissions of %s to %03o", f.Name, bits))

	return jsonResp(protocol.CmdSuccess, chmodResponse{
		Status:         statusOK,
		Permissions:    bits,
		PermissionsStr: perm.FormatMode(bits),
	})
}

// parsePermissions accepts either "644" (three octal digits) or an integer
// in 0..0777.
func parsePermissions(raw json.RawMessage) (uint32, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing permissions")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return perm.ParseOctal(s)
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if n < 0 || n > int64(perm.MaxMode) {
		return 0, fmt.Errorf("permissions out of range: %d", n)
	}
	return uint32(n), nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, sess *Session, payload []byte) response {
	var req deleteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	f, err := d.engine.Store.GetFile(ctx, req.FileID)
	if err != nil {
		return errResp("File not found")
	}
	if f.OwnerID != sess.UserID {
		return d.denied(ctx, sess, fmt.Sprintf("delete file %d", f.ID))
	}

	if err := d.engine.Store.DeleteFile(ctx, f.ID); err != nil {
		logger.Error("delete failed", logger.FileID(f.ID), logger.Err(err))
		return errResp("Failed to delete file")
	}

	// Blob removal is best-effort; a missing body is fine, anything else
	// is logged and the metadata deletion stands.
	if !f.IsDirectory && f.BlobRef != "" {
		if err := d.engine.Blobs.Delete(ctx, f.BlobRef); err != nil && !errors.Is(err, blob.ErrNotFound) {
			logger.Warn("blob cleanup failed", logger.BlobID(f.BlobRef), logger.Err(err))
		}
	}

	d.logActivity(ctx, sess.UserID, store.ActionDelete, fmt.Sprintf("Deleted %s", f.Name))
	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}

func (d *Dispatcher) handleFileInfo(ctx context.Context, sess *Session, payload []byte) response {
	var req fileInfoRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	f, err := d.engine.Store.GetFile(ctx, req.FileID)
	if err != nil {
		return errResp("File not found")
	}

	path, err := d.engine.Store.Path(ctx, f.ID)
	if err != nil {
		path = "/" + f.Name
	}

	owners := map[int64]string{}
	return jsonResp(protocol.CmdSuccess, fileInfoResponse{
		Status:         statusOK,
		ID:             f.ID,
		Name:           f.Name,
		ParentID:       f.ParentID,
		Path:           path,
		Size:           f.Size,
		IsDirectory:    f.IsDirectory,
		Permissions:    f.Permissions,
		PermissionsStr: perm.FormatMode(f.Permissions),
		OwnerID:        f.OwnerID,
		Owner:          d.ownerName(ctx, owners, f.OwnerID),
		CreatedAt:      formatTime(f.CreatedAt),
	})
}

func (d *Dispatcher) handleSearch(ctx context.Context, sess *Session, payload []byte) response {
	var req searchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	baseDir := sess.CurrentDir
	if req.DirectoryID != nil {
		baseDir = *req.DirectoryID
	}

	results, err := d.engine.Store.Search(ctx, store.SearchOptions{
		BaseDir:   baseDir,
		Pattern:   req.Pattern,
		Recursive: req.Recursive,
		Limit:     req.Limit,
	})
	if err != nil {
		if errors.Is(err, store.ErrBadPattern) {
			return errResp("Invalid search pattern")
		}
		logger.Error("search failed", logger.Pattern(req.Pattern), logger.Err(err))
		return errResp("Search failed")
	}

	owners := map[int64]string{}
	out := make([]searchResult, 0, len(results))
	for _, f := range results {
		path, err := d.engine.Store.Path(ctx, f.ID)
		if err != nil {
			path = "/" + f.Name
		}
		out = append(out, searchResult{
			ID:          f.ID,
			Name:        f.Name,
			ParentID:    f.ParentID,
			Path:        path,
			Size:        f.Size,
			IsDirectory: f.IsDirectory,
			Permissions: f.Permissions,
			OwnerID:     f.OwnerID,
			Owner:       d.ownerName(ctx, owners, f.OwnerID),
			CreatedAt:   formatTime(f.CreatedAt),
		})
	}

	d.logActivity(ctx, sess.UserID, store.ActionSearch,
		fmt.Sprintf("Searched for %q in directory %d", req.Pattern, baseDir))

	return jsonResp(protocol.CmdSearchResponse, searchResponse{
		Status:  statusOK,
		Count:   len(out),
		Results: out,
	})
}

func (d *Dispatcher) handleRename(ctx context.Context, sess *Session, payload []byte) response {
	var req renameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}
	if req.NewName == "" || len(req.NewName) > maxNameLen {
		return errResp("Invalid file name")
	}

	// Rename has no ownership check, unlike delete and chmod.
	if err := d.engine.Store.Rename(ctx, req.FileID, req.NewName); err != nil {
		if errors.Is(err, store.ErrFileNotFound) {
			return errResp("File not found")
		}
		logger.Error("rename failed", logger.FileID(req.FileID), logger.Err(err))
		return errResp("Failed to rename")
	}

	d.logActivity(ctx, sess.UserID, store.ActionRename,
		fmt.Sprintf("Renamed file %d to %s", req.FileID, req.NewName))
	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}

func (d *Dispatcher) handleCopy(ctx context.Context, sess *Session, payload []byte) response {
	var req copyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	newID, err := d.engine.Store.Copy(ctx, req.SourceID, req.DestParentID, req.NewName, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrFileNotFound) {
			return errResp("File not found")
		}
		logger.Error("copy failed", logger.FileID(req.SourceID), logger.Err(err))
		return errResp("Failed to copy")
	}

	d.logActivity(ctx, sess.UserID, store.ActionCopy,
		fmt.Sprintf("Copied file %d to directory %d", req.SourceID, req.DestParentID))

	return jsonResp(protocol.CmdSuccess, struct {
		Status string `json:"status"`
		FileID int64  `json:"file_id"`
	}{Status: statusOK, FileID: newID})
}

func (d *Dispatcher) handleMove(ctx context.Context, sess *Session, payload []byte) response {
	var req moveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResp("Invalid request")
	}

	if req.NewParentID != perm.RootDirID {
		if _, err := d.resolveDir(ctx, req.NewParentID); err != nil {
			return errResp(err.Error())
		}
	}

	// Move has no ownership check, matching rename.
	if err := d.engine.Store.Move(ctx, req.FileID, req.NewParentID); err != nil {
		if errors.Is(err, store.ErrFileNotFound) {
			return errResp("File not found")
		}
		logger.Error("move failed", logger.FileID(req.FileID), logger.Err(err))
		return errResp("Failed to move")
	}

	d.logActivity(ctx, sess.UserID, store.ActionMove,
		fmt.Sprintf("Moved file %d to directory %d", req.FileID, req.NewParentID))
	return jsonResp(protocol.CmdSuccess, okResponse{Status: statusOK})
}
