package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is magic(2) + command(1) + length(4).
	HeaderSize = 7

	// MaxPayloadSize bounds a single packet payload (16 MiB). Uploads and
	// downloads are single-packet, so this is also the file size ceiling.
	MaxPayloadSize = 16 << 20
)

// Magic is the fixed packet preamble.
var Magic = [2]byte{0xFA, 0xCE}

var (
	// ErrBadMagic is returned when the first two header bytes are not the
	// protocol magic. The stream is unrecoverable at that point.
	ErrBadMagic = errors.New("protocol: bad magic")

	// ErrPayloadTooLarge is returned when a header declares a payload
	// larger than MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")

	// ErrShortRead is returned when the stream ends mid-packet.
	ErrShortRead = errors.New("protocol: short read")
)

// Packet is one decoded wire message. Payload is owned by the packet and
// never aliases the reader's buffers.
type Packet struct {
	Command Command
	Payload []byte
}

// Encode serializes a packet into a fresh byte slice.
func Encode(cmd Command, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = Magic[0]
	buf[1] = Magic[1]
	buf[2] = byte(cmd)
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// WritePacket encodes and writes one packet to w.
func WritePacket(w io.Writer, cmd Command, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if _, err := w.Write(Encode(cmd, payload)); err != nil {
		return fmt.Errorf("protocol: write packet: %w", err)
	}
	return nil
}

// ReadPacket reads exactly one packet from r.
//
// A clean EOF before the first header byte is returned as io.EOF: the peer
// closed between packets, which is the normal end of a session. Any EOF
// after that is a truncated packet and maps to ErrShortRead.
func ReadPacket(r io.Reader) (*Packet, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated header", ErrShortRead)
		}
		return nil, fmt.Errorf("protocol: read header: %w", err)
	}

	if header[0] != Magic[0] || header[1] != Magic[1] {
		return nil, fmt.Errorf("%w: got 0x%02X 0x%02X", ErrBadMagic, header[0], header[1])
	}

	cmd := Command(header[2])
	length := binary.BigEndian.Uint32(header[3:7])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated payload, want %d bytes", ErrShortRead, length)
		}
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}

	return &Packet{Command: cmd, Payload: payload}, nil
}
