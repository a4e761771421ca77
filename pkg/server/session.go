package server

import "github.com/marmos91/fileshare/pkg/perm"

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	// StateConnected is pre-auth: only login-request is accepted.
	StateConnected SessionState = iota

	// StateAuthenticated is the normal post-login state.
	StateAuthenticated

	// StateTransferring sits between an upload-request and its
	// upload-data packet.
	StateTransferring

	// StateDisconnected is terminal.
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateTransferring:
		return "transferring"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PendingUpload is the descriptor held between an upload-request and its
// upload-data packet.
type PendingUpload struct {
	FileID   int64
	BlobID   string
	Size     int64
	Filename string
}

// Session is the per-connection state. It is owned by exactly one worker
// goroutine and needs no locking.
type Session struct {
	ID         uint64
	State      SessionState
	UserID     int64
	CurrentDir int64
	Pending    *PendingUpload
}

// NewSession returns a fresh unauthenticated session.
func NewSession(id uint64) *Session {
	return &Session{
		ID:         id,
		State:      StateConnected,
		UserID:     -1,
		CurrentDir: perm.RootDirID,
	}
}

// Authenticated reports whether login has completed. A transferring
// session is still authenticated.
func (s *Session) Authenticated() bool {
	return s.State == StateAuthenticated || s.State == StateTransferring
}

// Login moves the session to authenticated with the root as its current
// directory.
func (s *Session) Login(userID int64) {
	s.State = StateAuthenticated
	s.UserID = userID
	s.CurrentDir = perm.RootDirID
}

// BeginUpload records the pending descriptor and enters transferring.
func (s *Session) BeginUpload(p *PendingUpload) {
	s.Pending = p
	s.State = StateTransferring
}

// EndUpload clears the pending descriptor and returns to authenticated,
// regardless of the upload's outcome.
func (s *Session) EndUpload() {
	s.Pending = nil
	s.State = StateAuthenticated
}
