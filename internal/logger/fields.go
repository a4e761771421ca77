package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so the log stream stays queryable.
const (
	// Protocol & operation
	KeyCommand   = "command"    // wire command name: LOGIN_REQUEST, LIST_DIR, ...
	KeyStatus    = "status"     // response status: OK, ERROR
	KeyStatusMsg = "status_msg" // human-readable status message

	// File system
	KeyPath     = "path"     // full virtual path
	KeyFilename = "filename" // file or directory name
	KeyFileID   = "file_id"  // metadata row identifier
	KeySize     = "size"     // size in bytes
	KeyMode     = "mode"     // permission bits (octal)
	KeyPattern  = "pattern"  // search pattern
	KeyEntries  = "entries"  // number of listing/search entries

	// Client & session
	KeyClientIP  = "client_ip"
	KeySessionID = "session_id"
	KeyUserID    = "user_id"
	KeyUsername  = "username"

	// Blob store
	KeyBlobID = "blob_id"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyBytes      = "bytes"
)

// Field constructors for type safety.

// Command returns a slog.Attr for the wire command name
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// Status returns a slog.Attr for the response status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// StatusMsg returns a slog.Attr for a human-readable status message
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// Path returns a slog.Attr for a virtual path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a file or directory name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// FileID returns a slog.Attr for a metadata row identifier
func FileID(id int64) slog.Attr {
	return slog.Int64(KeyFileID, id)
}

// Size returns a slog.Attr for a size in bytes
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Mode returns a slog.Attr for permission bits
func Mode(m uint32) slog.Attr {
	return slog.Any(KeyMode, m)
}

// Pattern returns a slog.Attr for a search pattern
func Pattern(p string) slog.Attr {
	return slog.String(KeyPattern, p)
}

// Entries returns a slog.Attr for a listing entry count
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// ClientIP returns a slog.Attr for the client address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// SessionID returns a slog.Attr for the session identifier
func SessionID(id uint64) slog.Attr {
	return slog.Uint64(KeySessionID, id)
}

// UserID returns a slog.Attr for a user identifier
func UserID(id int64) slog.Attr {
	return slog.Int64(KeyUserID, id)
}

// Username returns a slog.Attr for a username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// BlobID returns a slog.Attr for a blob identifier
func BlobID(id string) slog.Attr {
	return slog.String(KeyBlobID, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Bytes returns a slog.Attr for a transferred byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}
