package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileshare/pkg/blob"
	"github.com/marmos91/fileshare/pkg/protocol"
	"github.com/marmos91/fileshare/pkg/store"
)

// startServer boots a full server on an ephemeral port backed by temp
// storage and returns its address.
func startServer(t *testing.T, cfg Config) string {
	t.Helper()

	dir := t.TempDir()
	st, err := store.New(store.Config{Path: filepath.Join(dir, "meta.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewWithPath(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	cfg.BindAddress = "127.0.0.1"
	srv := New(cfg, NewEngine(st, blobs, nil))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(context.Background()) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
		select {
		case err := <-serveErr:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop in time")
		}
	})

	return srv.ListenerAddr()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialServer(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(cmd protocol.Command, v any) {
	c.t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(c.t, err)
	c.sendRaw(cmd, payload)
}

func (c *testClient) sendRaw(cmd protocol.Command, payload []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, protocol.WritePacket(c.conn, cmd, payload))
}

func (c *testClient) recv() *protocol.Packet {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	pkt, err := protocol.ReadPacket(c.conn)
	require.NoError(c.t, err)
	return pkt
}

// roundTrip sends one request and returns the single response.
func (c *testClient) roundTrip(cmd protocol.Command, v any) *protocol.Packet {
	c.t.Helper()
	c.send(cmd, v)
	return c.recv()
}

func (c *testClient) login(username, password string) {
	c.t.Helper()
	pkt := c.roundTrip(protocol.CmdLoginRequest, loginRequest{Username: username, Password: password})
	require.Equal(c.t, protocol.CmdLoginResponse, pkt.Command, "login failed: %s", pkt.Payload)
}

func decodeJSON[T any](t *testing.T, pkt *protocol.Packet) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(pkt.Payload, &v))
	return v
}

// errorMessage asserts pkt is an error packet and returns its message.
func errorMessage(t *testing.T, pkt *protocol.Packet) string {
	t.Helper()
	require.Equal(t, protocol.CmdError, pkt.Command, "expected error packet, got %s: %s", pkt.Command, pkt.Payload)
	resp := decodeJSON[errorResponse](t, pkt)
	assert.Equal(t, "ERROR", resp.Status)
	return resp.Message
}

func TestLogin(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)

	pkt := c.roundTrip(protocol.CmdLoginRequest, loginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, "Invalid credentials", errorMessage(t, pkt))

	pkt = c.roundTrip(protocol.CmdLoginRequest, loginRequest{Username: "admin", Password: "admin"})
	require.Equal(t, protocol.CmdLoginResponse, pkt.Command)
	resp := decodeJSON[loginResponse](t, pkt)
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, int64(1), resp.UserID)
	assert.Equal(t, 1, resp.IsAdmin)
}

func TestAuthGate(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)

	pkt := c.roundTrip(protocol.CmdListDir, listDirRequest{})
	assert.Equal(t, "Not authenticated", errorMessage(t, pkt))

	pkt = c.roundTrip(protocol.CmdAdminListUsers, struct{}{})
	assert.Equal(t, "Not authenticated", errorMessage(t, pkt))
}

func TestDirectoryLifecycle(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	pkt := c.roundTrip(protocol.CmdMkdir, mkdirRequest{Name: "docs"})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	made := decodeJSON[dirResponse](t, pkt)
	assert.Equal(t, "OK", made.Status)
	assert.Equal(t, "docs", made.Name)
	require.NotZero(t, made.DirectoryID)

	// Listing echoes the list-dir command code, not the generic success.
	pkt = c.roundTrip(protocol.CmdListDir, listDirRequest{})
	require.Equal(t, protocol.CmdListDir, pkt.Command)
	listing := decodeJSON[listDirResponse](t, pkt)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "docs", listing.Files[0].Name)
	assert.True(t, listing.Files[0].IsDirectory)
	assert.Equal(t, "admin", listing.Files[0].Owner)

	pkt = c.roundTrip(protocol.CmdChangeDir, changeDirRequest{DirectoryID: made.DirectoryID})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	cd := decodeJSON[dirResponse](t, pkt)
	assert.Equal(t, made.DirectoryID, cd.DirectoryID)
	assert.Equal(t, "docs", cd.Name)

	// mkdir without parent_id uses the session's current directory.
	pkt = c.roundTrip(protocol.CmdMkdir, mkdirRequest{Name: "inner"})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	pkt = c.roundTrip(protocol.CmdListDir, listDirRequest{})
	listing = decodeJSON[listDirResponse](t, pkt)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "inner", listing.Files[0].Name)

	pkt = c.roundTrip(protocol.CmdChangeDir, changeDirRequest{DirectoryID: 9999})
	assert.Equal(t, "Directory not found", errorMessage(t, pkt))
}

func TestUploadDownload(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	body := []byte("hello, fileshare")

	pkt := c.roundTrip(protocol.CmdUploadRequest, uploadRequest{Name: "hello.txt", Size: int64(len(body))})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	ready := decodeJSON[uploadReadyResponse](t, pkt)
	assert.Equal(t, "READY", ready.Status)
	require.NotZero(t, ready.FileID)
	require.NotEmpty(t, ready.UUID)

	c.sendRaw(protocol.CmdUploadData, body)
	pkt = c.recv()
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	assert.Equal(t, "OK", decodeJSON[okResponse](t, pkt).Status)

	// The download response body is the raw file, no JSON envelope.
	pkt = c.roundTrip(protocol.CmdDownloadRequest, downloadRequest{FileID: ready.FileID})
	require.Equal(t, protocol.CmdDownloadResponse, pkt.Command)
	assert.Equal(t, body, pkt.Payload)

	pkt = c.roundTrip(protocol.CmdDownloadRequest, downloadRequest{FileID: 9999})
	assert.Equal(t, "File not found", errorMessage(t, pkt))
}

func TestUploadSizeMismatch(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	pkt := c.roundTrip(protocol.CmdUploadRequest, uploadRequest{Name: "short.bin", Size: 5})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	c.sendRaw(protocol.CmdUploadData, []byte("abc"))
	pkt = c.recv()
	assert.Equal(t, "Size mismatch. Expected 5 bytes, got 3 bytes", errorMessage(t, pkt))

	// The failed transfer cleared the descriptor, so a stray data packet
	// is rejected.
	c.sendRaw(protocol.CmdUploadData, []byte("abcde"))
	pkt = c.recv()
	assert.Equal(t, "No upload in progress", errorMessage(t, pkt))
}

func TestPermissionEnforcement(t *testing.T) {
	addr := startServer(t, Config{})

	admin := dialServer(t, addr)
	admin.login("admin", "admin")

	pkt := admin.roundTrip(protocol.CmdAdminCreateUser, adminCreateUserRequest{
		Username: "bob", Password: "secret",
	})
	require.Equal(t, protocol.CmdSuccess, pkt.Command, "create user: %s", pkt.Payload)

	body := []byte("owner eyes only")
	pkt = admin.roundTrip(protocol.CmdUploadRequest, uploadRequest{Name: "private.txt", Size: int64(len(body))})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	ready := decodeJSON[uploadReadyResponse](t, pkt)
	admin.sendRaw(protocol.CmdUploadData, body)
	require.Equal(t, protocol.CmdSuccess, admin.recv().Command)

	pkt = admin.roundTrip(protocol.CmdChmod, map[string]any{"file_id": ready.FileID, "permissions": "600"})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	chmodded := decodeJSON[chmodResponse](t, pkt)
	assert.Equal(t, uint32(0o600), chmodded.Permissions)
	assert.Equal(t, "rw-------", chmodded.PermissionsStr)

	bob := dialServer(t, addr)
	bob.login("bob", "secret")

	pkt = bob.roundTrip(protocol.CmdDownloadRequest, downloadRequest{FileID: ready.FileID})
	assert.Equal(t, "Permission denied", errorMessage(t, pkt))

	// Only the owner may chmod or delete, regardless of mode bits.
	pkt = bob.roundTrip(protocol.CmdChmod, map[string]any{"file_id": ready.FileID, "permissions": "777"})
	assert.Equal(t, "Permission denied", errorMessage(t, pkt))
	pkt = bob.roundTrip(protocol.CmdDelete, deleteRequest{FileID: ready.FileID})
	assert.Equal(t, "Permission denied", errorMessage(t, pkt))

	// Integer modes are accepted too; 0604 grants others read.
	pkt = admin.roundTrip(protocol.CmdChmod, map[string]any{"file_id": ready.FileID, "permissions": 0o604})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	pkt = bob.roundTrip(protocol.CmdDownloadRequest, downloadRequest{FileID: ready.FileID})
	require.Equal(t, protocol.CmdDownloadResponse, pkt.Command)
	assert.Equal(t, body, pkt.Payload)
}

func TestAdminProtections(t *testing.T) {
	addr := startServer(t, Config{})

	admin := dialServer(t, addr)
	admin.login("admin", "admin")

	pkt := admin.roundTrip(protocol.CmdAdminCreateUser, adminCreateUserRequest{
		Username: "bob", Password: "secret",
	})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	created := decodeJSON[adminCreateUserResponse](t, pkt)

	bob := dialServer(t, addr)
	bob.login("bob", "secret")
	pkt = bob.roundTrip(protocol.CmdAdminListUsers, struct{}{})
	assert.Equal(t, "Admin privileges required", errorMessage(t, pkt))

	pkt = admin.roundTrip(protocol.CmdAdminDeleteUser, adminDeleteUserRequest{UserID: 1})
	assert.Equal(t, "Cannot delete yourself", errorMessage(t, pkt))

	// Promote bob, then have him try to take down the primary admin.
	pkt = admin.roundTrip(protocol.CmdAdminUpdateUser, adminUpdateUserRequest{
		UserID: created.UserID, IsAdmin: 1, IsActive: 1,
	})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	pkt = bob.roundTrip(protocol.CmdAdminDeleteUser, adminDeleteUserRequest{UserID: 1})
	assert.Equal(t, "Cannot delete primary admin", errorMessage(t, pkt))
	pkt = bob.roundTrip(protocol.CmdAdminUpdateUser, adminUpdateUserRequest{UserID: 1, IsAdmin: 0, IsActive: 1})
	assert.Equal(t, "Cannot remove admin rights from primary admin", errorMessage(t, pkt))

	pkt = admin.roundTrip(protocol.CmdAdminListUsers, struct{}{})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	users := decodeJSON[adminListResponse](t, pkt)
	require.Len(t, users.Users, 2)
	assert.Equal(t, "admin", users.Users[0].Username)
	assert.Equal(t, "bob", users.Users[1].Username)
}

func TestSearchOverWire(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	for _, name := range []string{"report.txt", "notes.txt", "image.png"} {
		pkt := c.roundTrip(protocol.CmdUploadRequest, uploadRequest{Name: name, Size: 1})
		require.Equal(t, protocol.CmdSuccess, pkt.Command)
		c.sendRaw(protocol.CmdUploadData, []byte("x"))
		require.Equal(t, protocol.CmdSuccess, c.recv().Command)
	}

	pkt := c.roundTrip(protocol.CmdSearchRequest, searchRequest{Pattern: "*.txt"})
	require.Equal(t, protocol.CmdSearchResponse, pkt.Command)
	found := decodeJSON[searchResponse](t, pkt)
	assert.Equal(t, 2, found.Count)
	require.Len(t, found.Results, 2)
	assert.Equal(t, "notes.txt", found.Results[0].Name)
	assert.Equal(t, "report.txt", found.Results[1].Name)
	assert.Equal(t, "/notes.txt", found.Results[0].Path)

	// A bare SQL wildcard is just as much a match-everything pattern as
	// the glob one and must be rejected the same way.
	for _, bad := range []string{"*", "%"} {
		pkt = c.roundTrip(protocol.CmdSearchRequest, searchRequest{Pattern: bad})
		assert.Equal(t, "Invalid search pattern", errorMessage(t, pkt), "pattern %q", bad)
	}
}

func TestNestedUploadSearchFlow(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	pkt := c.roundTrip(protocol.CmdMkdir, mkdirRequest{Name: "docs"})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	docs := decodeJSON[dirResponse](t, pkt)

	pkt = c.roundTrip(protocol.CmdChangeDir, changeDirRequest{DirectoryID: docs.DirectoryID})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	pkt = c.roundTrip(protocol.CmdUploadRequest, uploadRequest{Name: "a.txt", Size: 5})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)
	ready := decodeJSON[uploadReadyResponse](t, pkt)
	c.sendRaw(protocol.CmdUploadData, []byte("hello"))
	require.Equal(t, protocol.CmdSuccess, c.recv().Command)

	// Non-recursive search inside docs finds the file with its full
	// virtual path.
	pkt = c.roundTrip(protocol.CmdSearchRequest, searchRequest{
		Pattern:     "a*",
		DirectoryID: &docs.DirectoryID,
		Limit:       100,
	})
	require.Equal(t, protocol.CmdSearchResponse, pkt.Command)
	found := decodeJSON[searchResponse](t, pkt)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "a.txt", found.Results[0].Name)
	assert.Equal(t, "/docs/a.txt", found.Results[0].Path)

	// Default file mode 0644 grants other users read access.
	pkt = c.roundTrip(protocol.CmdAdminCreateUser, adminCreateUserRequest{Username: "bob", Password: "secret"})
	require.Equal(t, protocol.CmdSuccess, pkt.Command)

	bob := dialServer(t, addr)
	bob.login("bob", "secret")
	pkt = bob.roundTrip(protocol.CmdDownloadRequest, downloadRequest{FileID: ready.FileID})
	require.Equal(t, protocol.CmdDownloadResponse, pkt.Command)
	assert.Equal(t, []byte("hello"), pkt.Payload)

	// Any authenticated user can list the root.
	pkt = bob.roundTrip(protocol.CmdListDir, listDirRequest{})
	require.Equal(t, protocol.CmdListDir, pkt.Command)
}

func TestUnknownCommand(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)
	c.login("admin", "admin")

	c.sendRaw(protocol.Command(0x99), nil)
	pkt := c.recv()
	assert.Equal(t, "Unknown command", errorMessage(t, pkt))
}

func TestMalformedFrameDropsConnection(t *testing.T) {
	addr := startServer(t, Config{})
	c := dialServer(t, addr)

	_, err := c.conn.Write([]byte{0xDE, 0xAD, 0x01, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = protocol.ReadPacket(c.conn)
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnectionLimit(t *testing.T) {
	addr := startServer(t, Config{MaxConnections: 1})

	first := dialServer(t, addr)
	first.login("admin", "admin")

	// The second connection is accepted and immediately closed.
	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = protocol.ReadPacket(second)
	assert.ErrorIs(t, err, io.EOF)

	// The established session is unaffected.
	pkt := first.roundTrip(protocol.CmdListDir, listDirRequest{})
	assert.Equal(t, protocol.CmdListDir, pkt.Command)
}

func TestGracefulShutdown(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(store.Config{Path: filepath.Join(dir, "meta.db")})
	require.NoError(t, err)
	defer st.Close()

	blobs, err := blob.NewWithPath(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	defer blobs.Close()

	srv := New(Config{BindAddress: "127.0.0.1"}, NewEngine(st, blobs, nil))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(context.Background()) }()

	c := dialServer(t, srv.ListenerAddr())
	c.login("admin", "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	// The idle client's connection is gone.
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = protocol.ReadPacket(c.conn)
	assert.Error(t, err)
}
