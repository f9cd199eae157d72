// Package serde implements the two self-describing encodings RayforceDB
// moves values through: a length-prefixed wire/blob stream (spec.md §4.4)
// and a memory-mappable on-disk form (mmap.go, §4.4/§4.7). The wire format
// is externally specified byte-for-byte, so it is hand-rolled rather than
// built on encoding/gob or a protobuf schema — no generic codec can
// reproduce this exact tag/body layout.
package serde

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// WireMagic identifies a framed message header (spec.md §4.4, §4.12).
const WireMagic uint32 = 0xCEFADEFA

// MsgKind is the header's message-type field.
type MsgKind uint8

const (
	MsgAsync MsgKind = iota
	MsgSync
	MsgResponse
)

// Header is the 16-byte frame prefix shared by IPC and blob persistence.
type Header struct {
	Magic    uint32
	Version  uint8
	Flags    uint8
	Endian   uint8 // 0 = little-endian, the only form this codec writes
	Kind     MsgKind
	PayloadLen uint32
}

const HeaderSize = 16

func (h Header) encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	b[4] = h.Version
	b[5] = h.Flags
	b[6] = h.Endian
	b[7] = byte(h.Kind)
	binary.LittleEndian.PutUint32(b[8:12], h.PayloadLen)
	// bytes 12:16 reserved, left zero.
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("serde: short header (%d bytes)", len(b))
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    b[4],
		Flags:      b[5],
		Endian:     b[6],
		Kind:       MsgKind(b[7]),
		PayloadLen: binary.LittleEndian.Uint32(b[8:12]),
	}
	if h.Magic != WireMagic {
		return Header{}, fmt.Errorf("serde: bad magic %#x", h.Magic)
	}
	if h.Endian != 0 {
		return Header{}, fmt.Errorf("serde: unsupported endian tag %d", h.Endian)
	}
	return h, nil
}

// WriteFrame writes a full header+payload message for kind carrying v.
func WriteFrame(w io.Writer, kind MsgKind, v value.Value) error {
	var body bytes.Buffer
	if err := EncodeValue(&body, v); err != nil {
		return err
	}
	h := Header{Magic: WireMagic, Version: 1, Kind: kind, PayloadLen: uint32(body.Len())}
	hb := h.encode()
	if _, err := w.Write(hb[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// ReadFrame reads one header+payload message, interning any SYMBOL bytes
// into tab and allocating vector payloads from a.
func ReadFrame(r *bufio.Reader, a *arena.Arena, tab *symtab.Table) (MsgKind, value.Value, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return 0, nil, err
	}
	h, err := decodeHeader(hb[:])
	if err != nil {
		return 0, nil, err
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	v, err := DecodeValue(bytes.NewReader(payload), a, tab)
	if err != nil {
		return 0, nil, err
	}
	return h.Kind, v, nil
}

