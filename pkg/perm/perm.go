// Package perm implements the owner/other permission model. Each file
// record carries nine permission bits; the group triplet is stored but
// never consulted.
package perm

import (
	"context"
	"fmt"
)

// Access is the kind of access being requested.
type Access uint32

const (
	Execute Access = 1
	Write   Access = 2
	Read    Access = 4
)

// RootDirID is the conceptual root directory. It has no backing record and
// grants every access to any authenticated user.
const RootDirID int64 = 0

// Default permission bits for newly created records.
const (
	DefaultDirMode  uint32 = 0o755
	DefaultFileMode uint32 = 0o644
)

// MaxMode is the largest valid permission value (nine bits).
const MaxMode uint32 = 0o777

// Resolver looks up the fields a permission decision needs. The metadata
// store satisfies this.
type Resolver interface {
	FilePermissions(ctx context.Context, fileID int64) (ownerID int64, mode uint32, err error)
}

// Engine decides allow/deny for (user, file, access) triples.
type Engine struct {
	files Resolver
}

// NewEngine creates a permission engine backed by the given resolver.
func NewEngine(files Resolver) *Engine {
	return &Engine{files: files}
}

// May reports whether userID is granted access on fileID. The root
// directory always allows; a record that cannot be resolved denies.
func (e *Engine) May(ctx context.Context, userID, fileID int64, access Access) bool {
	if fileID == RootDirID {
		return true
	}

	ownerID, mode, err := e.files.FilePermissions(ctx, fileID)
	if err != nil {
		return false
	}

	return Allowed(userID, ownerID, mode, access)
}

// Allowed applies the owner/other split to already-resolved fields.
func Allowed(userID, ownerID int64, mode uint32, access Access) bool {
	var triplet uint32
	if userID == ownerID {
		triplet = (mode >> 6) & 0o7
	} else {
		triplet = mode & 0o7
	}
	return triplet&uint32(access) != 0
}

// FormatMode renders nine permission bits as "rwxr-xr-x".
func FormatMode(mode uint32) string {
	const symbols = "rwx"
	buf := make([]byte, 9)
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			buf[i] = symbols[i%3]
		} else {
			buf[i] = '-'
		}
	}
	return string(buf)
}

// ParseOctal parses a permission string of exactly three octal digits,
// e.g. "755" or "644".
func ParseOctal(s string) (uint32, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("permission string must be 3 octal digits, got %q", s)
	}
	var mode uint32
	for _, c := range []byte(s) {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("permission string must be 3 octal digits, got %q", s)
		}
		mode = mode<<3 | uint32(c-'0')
	}
	return mode, nil
}
