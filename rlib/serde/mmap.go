package serde

import (
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Mapping is a memory-mapped file reinterpreted as a value payload, per
// spec.md §4.4's three mmod forms. Drop unmaps the file.
type Mapping struct {
	file *os.File
	mm   mmap.MMap
}

// OpenSimple maps path as a SIMPLE vector file: header at offset 0,
// payload immediately after (spec.md §4.4). It returns the raw element
// bytes ready to hand to value.NewExternalVector.
func OpenSimple(path string) (*Mapping, value.Header, []byte, error) {
	m, raw, err := openAndMap(path)
	if err != nil {
		return nil, value.Header{}, nil, err
	}
	if len(raw) < value.HeaderSize {
		m.Close()
		return nil, value.Header{}, nil, fmt.Errorf("serde: %s too small for a header", path)
	}
	hdr, err := DecodeHeaderBytes(raw[:value.HeaderSize])
	if err != nil {
		m.Close()
		return nil, value.Header{}, nil, err
	}
	payload := raw[value.HeaderSize:]
	return m, hdr, payload, nil
}

// OpenCompound maps path as a COMPOUND file: a RAYPageSize preamble
// carrying a printable key, then the header at the page boundary. Used for
// ENUM domain ("sym") files (spec.md §4.4, §4.7).
func OpenCompound(path string) (*Mapping, string, value.Header, []byte, error) {
	m, raw, err := openAndMap(path)
	if err != nil {
		return nil, "", value.Header{}, nil, err
	}
	if len(raw) < value.RAYPageSize+value.HeaderSize {
		m.Close()
		return nil, "", value.Header{}, nil, fmt.Errorf("serde: %s too small for a compound preamble", path)
	}
	key := string(bytes.TrimRight(raw[:value.RAYPageSize], "\x00"))
	hdrBytes := raw[value.RAYPageSize : value.RAYPageSize+value.HeaderSize]
	hdr, err := DecodeHeaderBytes(hdrBytes)
	if err != nil {
		m.Close()
		return nil, "", value.Header{}, nil, err
	}
	payload := raw[value.RAYPageSize+value.HeaderSize:]
	return m, key, hdr, payload, nil
}

// OpenSerialized maps path as a SERIALIZED blob: 16-byte mmod-only prefix
// followed by the self-describing wire encoding (spec.md §4.4). Callers
// decode the trailing bytes with DecodeValue.
func OpenSerialized(path string) (*Mapping, []byte, error) {
	m, raw, err := openAndMap(path)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < value.HeaderSize {
		m.Close()
		return nil, nil, fmt.Errorf("serde: %s too small for a header", path)
	}
	return m, raw[value.HeaderSize:], nil
}

func openAndMap(path string) (*Mapping, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("serde: mmap %s: %w", path, err)
	}
	return &Mapping{file: f, mm: mm}, []byte(mm), nil
}

// Close unmaps and closes the backing file.
func (m *Mapping) Close() error {
	if m == nil {
		return nil
	}
	err := m.mm.Unmap()
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteSimple creates a SIMPLE-mode file: header then payload, matching
// the layout OpenSimple reads back.
func WriteSimple(path string, hdr value.Header, payload []byte) error {
	buf := make([]byte, value.HeaderSize+len(payload))
	copy(buf[:value.HeaderSize], EncodeHeaderBytes(hdr))
	copy(buf[value.HeaderSize:], payload)
	return os.WriteFile(path, buf, 0o644)
}

// WriteCompound creates a COMPOUND-mode file: a page-sized preamble
// holding key (NUL-padded to RAYPageSize), then header + payload.
func WriteCompound(path, key string, hdr value.Header, payload []byte) error {
	if len(key) > value.RAYPageSize {
		return fmt.Errorf("serde: compound key %q exceeds page size", key)
	}
	buf := make([]byte, value.RAYPageSize+value.HeaderSize+len(payload))
	copy(buf, key)
	copy(buf[value.RAYPageSize:], EncodeHeaderBytes(hdr))
	copy(buf[value.RAYPageSize+value.HeaderSize:], payload)
	return os.WriteFile(path, buf, 0o644)
}

// WriteSerialized creates a SERIALIZED-mode file: a mmod-only 16-byte
// prefix followed by an already wire-encoded payload.
func WriteSerialized(path string, payload []byte) error {
	var prefix [value.HeaderSize]byte
	prefix[0] = byte(value.ModeExternalSerialized)
	buf := make([]byte, value.HeaderSize+len(payload))
	copy(buf[:value.HeaderSize], prefix[:])
	copy(buf[value.HeaderSize:], payload)
	return os.WriteFile(path, buf, 0o644)
}

// EncodeHeaderBytes packs h into its literal 16-byte layout
// (mmod, order, type, attrs, refc[4], len[8]) for wire/mmap use.
func EncodeHeaderBytes(h value.Header) []byte {
	b := make([]byte, value.HeaderSize)
	b[0] = byte(h.MMod)
	b[1] = h.Order
	b[2] = byte(int8(h.Type))
	b[3] = byte(h.Attrs)
	putUint32LE(b[4:8], h.Refc)
	putUint64LE(b[8:16], h.Len)
	return b
}

// DecodeHeaderBytes is the inverse of EncodeHeaderBytes.
func DecodeHeaderBytes(b []byte) (value.Header, error) {
	if len(b) < value.HeaderSize {
		return value.Header{}, fmt.Errorf("serde: short header (%d bytes)", len(b))
	}
	return value.Header{
		MMod:  value.MemMode(b[0]),
		Order: b[1],
		Type:  value.Type(int8(b[2])),
		Attrs: value.Attrs(b[3]),
		Refc:  getUint32LE(b[4:8]),
		Len:   getUint64LE(b[8:16]),
	}, nil
}

func putUint32LE(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
