package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultReadPoll is the conventional per-poll read timeout.
const DefaultReadPoll = time.Second

// maxMessageLen bounds a frame so a corrupt length prefix cannot
// trigger an enormous allocation.
const maxMessageLen = 64 * 1024 * 1024

// WriteMessage sends one frame: a 4-byte big-endian unsigned length
// prefix followed by exactly that many payload bytes. Prefix and body
// are issued in a single write so the frame is atomic from the
// caller's perspective. A zero-length payload is a valid, body-less
// ping frame.
func WriteMessage(conn net.Conn, payload []byte) error {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads one frame, blocking until the full prefix and then
// the full payload have arrived. Each wait for more bytes is bounded
// by pollTimeout; there is no cap on total time, so a peer trickling
// bytes can hold the reader as long as it keeps each poll fed.
//
// On timeout or a short read the result is (nil, false) and no partial
// message is delivered. The stream may then be mid-frame, so a false
// result is channel-fatal: the caller must close the connection rather
// than attempt another read.
func ReadMessage(conn net.Conn, pollTimeout time.Duration) ([]byte, bool) {
	var prefix [4]byte
	if !readBytes(conn, prefix[:], pollTimeout) {
		return nil, false
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxMessageLen {
		return nil, false
	}
	payload := make([]byte, length)
	if !readBytes(conn, payload, pollTimeout) {
		return nil, false
	}
	return payload, true
}

// ReadFrame waits without a deadline for the next frame to start,
// then reads the remainder under per-poll timeouts like ReadMessage.
// Server read loops on long-lived connections use it so an idle peer
// is not mistaken for a stalled one; the blocking wait is released by
// closing the connection. A false result is channel-fatal, as with
// ReadMessage.
func ReadFrame(conn net.Conn, pollTimeout time.Duration) ([]byte, bool) {
	var prefix [4]byte
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, false
	}
	if _, err := io.ReadFull(conn, prefix[:1]); err != nil {
		return nil, false
	}
	if !readBytes(conn, prefix[1:], pollTimeout) {
		return nil, false
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxMessageLen {
		return nil, false
	}
	payload := make([]byte, length)
	if !readBytes(conn, payload, pollTimeout) {
		return nil, false
	}
	return payload, true
}

// readBytes fills buf from conn, re-arming the read deadline with
// pollTimeout before every poll. Returns false when any poll times out
// or the peer closes before buf is full.
func readBytes(conn net.Conn, buf []byte, pollTimeout time.Duration) bool {
	read := 0
	for read < len(buf) {
		if err := conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return false
		}
		n, err := conn.Read(buf[read:])
		read += n
		if read >= len(buf) {
			break
		}
		if err != nil {
			return false
		}
	}
	conn.SetReadDeadline(time.Time{}) //nolint:errcheck // best-effort reset
	return true
}
