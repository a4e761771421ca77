// Package protocol implements the framed binary wire protocol spoken by
// fileshare clients: a fixed 2-byte magic, a 1-byte command code, a 4-byte
// big-endian payload length, and the payload itself.
package protocol

import "fmt"

// Command is the 1-byte command code carried in every packet header.
type Command byte

// Command codes. Payloads are JSON objects except UPLOAD_DATA and
// DOWNLOAD_RESPONSE, which carry raw file bytes.
const (
	CmdLoginRequest  Command = 0x01
	CmdLoginResponse Command = 0x02

	CmdListDir   Command = 0x10
	CmdChangeDir Command = 0x11
	CmdMkdir     Command = 0x12

	CmdUploadRequest Command = 0x20
	CmdUploadData    Command = 0x21

	CmdDownloadRequest  Command = 0x30
	CmdDownloadResponse Command = 0x31

	CmdDelete         Command = 0x40
	CmdChmod          Command = 0x41
	CmdFileInfo       Command = 0x42
	CmdSearchRequest  Command = 0x43
	CmdSearchResponse Command = 0x44
	CmdRename         Command = 0x45
	CmdCopy           Command = 0x46
	CmdMove           Command = 0x47

	CmdAdminListUsers  Command = 0x50
	CmdAdminCreateUser Command = 0x51
	CmdAdminDeleteUser Command = 0x52
	CmdAdminUpdateUser Command = 0x53

	CmdSuccess Command = 0xFE
	CmdError   Command = 0xFF
)

var commandNames = map[Command]string{
	CmdLoginRequest:     "LOGIN_REQUEST",
	CmdLoginResponse:    "LOGIN_RESPONSE",
	CmdListDir:          "LIST_DIR",
	CmdChangeDir:        "CHANGE_DIR",
	CmdMkdir:            "MKDIR",
	CmdUploadRequest:    "UPLOAD_REQUEST",
	CmdUploadData:       "UPLOAD_DATA",
	CmdDownloadRequest:  "DOWNLOAD_REQUEST",
	CmdDownloadResponse: "DOWNLOAD_RESPONSE",
	CmdDelete:           "DELETE",
	CmdChmod:            "CHMOD",
	CmdFileInfo:         "FILE_INFO",
	CmdSearchRequest:    "SEARCH_REQUEST",
	CmdSearchResponse:   "SEARCH_RESPONSE",
	CmdRename:           "RENAME",
	CmdCopy:             "COPY",
	CmdMove:             "MOVE",
	CmdAdminListUsers:   "ADMIN_LIST_USERS",
	CmdAdminCreateUser:  "ADMIN_CREATE_USER",
	CmdAdminDeleteUser:  "ADMIN_DELETE_USER",
	CmdAdminUpdateUser:  "ADMIN_UPDATE_USER",
	CmdSuccess:          "SUCCESS",
	CmdError:            "ERROR",
}

// String returns the command mnemonic for logging.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(c))
}
