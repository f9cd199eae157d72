// Package ipc implements RayforceDB's wire protocol over a connected TCP
// socket (spec.md §4.12): a one-byte version handshake, 16-byte framed
// messages carrying self-describing payloads, and the sync/async/response
// message discipline a client uses to talk to a running instance.
package ipc

import (
	"bufio"
	"fmt"
	"io"
)

// ProtocolVersion is this build's handshake version byte.
const ProtocolVersion byte = 1

// handshake writes [version, 0x00] and reads the peer's, per spec.md
// §4.12 point 1. A missing null terminator or read/write failure closes
// the connection (the caller is expected to Close on error). br must be
// the same buffered reader the caller continues reading frames from
// afterward — the handshake bytes are consumed from the connection's one
// read buffer, not a throwaway one.
func handshake(w io.Writer, br *bufio.Reader) (peerVersion byte, err error) {
	if _, err := w.Write([]byte{ProtocolVersion, 0x00}); err != nil {
		return 0, err
	}
	var buf [2]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	if buf[1] != 0x00 {
		return 0, fmt.Errorf("ipc: handshake missing null terminator")
	}
	return buf[0], nil
}
