package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RootDirID is the conceptual root directory. It has no row; records whose
// ParentID is 0 live directly under it.
const RootDirID int64 = 0

// maxPathDepth caps the upward parent walk in Path.
const maxPathDepth = 32

// CreateFile inserts a new record and returns its id. Directories must not
// carry a blob reference; files must.
func (s *Store) CreateFile(ctx context.Context, f File) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.IsDirectory && f.BlobRef != "" {
		return 0, fmt.Errorf("%w: directory with blob reference", ErrInvalidRecord)
	}
	if !f.IsDirectory && f.BlobRef == "" {
		return 0, fmt.Errorf("%w: file without blob reference", ErrInvalidRecord)
	}

	f.ID = 0
	f.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(&f).Error; err != nil {
		return 0, err
	}
	return f.ID, nil
}

// GetFile returns the record with the given id.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getFile(ctx, id)
}

// getFile is GetFile without the lock, for internal composition.
func (s *Store) getFile(ctx context.Context, id int64) (*File, error) {
	var f File
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrFileNotFound)
	}
	return &f, nil
}

// FilePermissions resolves the fields a permission decision needs. This
// satisfies the permission engine's resolver interface.
func (s *Store) FilePermissions(ctx context.Context, fileID int64) (int64, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.getFile(ctx, fileID)
	if err != nil {
		return 0, 0, err
	}
	return f.OwnerID, f.Permissions, nil
}

// ListDirectory returns the children of parentID, directories first, then
// name ascending.
func (s *Store) ListDirectory(ctx context.Context, parentID int64) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []File
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("is_directory DESC, name ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFile removes the metadata row only. The caller owns any blob
// deletion.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&File{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetPermissions replaces the permission bits on a record.
func (s *Store) SetPermissions(ctx context.Context, id int64, bits uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Model(&File{}).
		Where("id = ?", id).
		Update("permissions", bits)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Rename changes the name of a record.
func (s *Store) Rename(ctx context.Context, id int64, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Model(&File{}).
		Where("id = ?", id).
		Update("name", newName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Move reparents a record.
func (s *Store) Move(ctx context.Context, id int64, newParentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Model(&File{}).
		Where("id = ?", id).
		Update("parent_id", newParentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Copy creates a new record from srcID under destParentID, inheriting
// size, type, and permissions. For files the blob reference is synthesized
// from the source without duplicating the blob itself, so downloads of the
// copy fail until the body is materialized.
// TODO: physically copy the blob or share it with a refcount.
func (s *Store) Copy(ctx context.Context, srcID, destParentID int64, newName string, ownerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.getFile(ctx, srcID)
	if err != nil {
		return 0, err
	}

	name := newName
	if name == "" {
		name = src.Name
	}

	var blobRef string
	if !src.IsDirectory {
		blobRef = fmt.Sprintf("copy_%d_%s", src.ID, src.BlobRef)
	}

	dup := File{
		ParentID:    destParentID,
		Name:        name,
		BlobRef:     blobRef,
		OwnerID:     ownerID,
		Size:        src.Size,
		IsDirectory: src.IsDirectory,
		Permissions: src.Permissions,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&dup).Error; err != nil {
		return 0, err
	}
	return dup.ID, nil
}

// Path reconstructs the absolute virtual path of a record by walking
// parent ids upward, capped at maxPathDepth levels. The result always
// begins with a single leading slash.
func (s *Store) Path(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	cur := id
	for i := 0; i < maxPathDepth; i++ {
		if cur == RootDirID {
			break
		}
		f, err := s.getFile(ctx, cur)
		if err != nil {
			return "", err
		}
		// A top-level record literally named "/" collapses into the
		// root prefix instead of doubling the slash.
		if !(f.ParentID == RootDirID && f.Name == "/") {
			parts = append(parts, f.Name)
		}
		cur = f.ParentID
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/"), nil
}
