package store

import "time"

// User is one account row. The primary admin (id=1) is seeded at first
// start and is protected from deletion and admin-flag removal.
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:32;not null"`
	PasswordHash string `gorm:"size:64;not null"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

// File is one VFS record, either a file or a directory. ParentID 0 denotes
// the conceptual root, which has no row of its own. Sibling name uniqueness
// is not enforced.
type File struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	ParentID    int64  `gorm:"index;not null;default:0"`
	Name        string `gorm:"size:255;not null"`
	BlobRef     string `gorm:"size:128"`
	OwnerID     int64  `gorm:"not null"`
	Size        int64  `gorm:"not null;default:0"`
	IsDirectory bool   `gorm:"not null;default:false"`
	Permissions uint32 `gorm:"not null"`
	CreatedAt   time.Time
}

// ActivityLog is one append-only audit entry. The protocol layer writes
// these and never reads them back.
type ActivityLog struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"index;not null"`
	Action      string `gorm:"size:32;not null"`
	Description string
	CreatedAt   time.Time
}

// AllModels returns every model for schema migration.
func AllModels() []any {
	return []any{
		&User{},
		&File{},
		&ActivityLog{},
	}
}
