// Package serialize is the single primitive layer every on-disk struct in
// the storage core builds on: fixed-width little-endian integers and
// length-prefixed byte strings. Nothing in this package depends on host
// struct layout — every higher-level encoder writes field-by-field into a
// byte slice through these helpers instead of reinterpreting a Go struct
// as bytes.
package serialize

import (
	"encoding/binary"
	"math"
)

func PutUint16(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }
func Uint16(buf []byte) uint16       { return binary.LittleEndian.Uint16(buf) }

func PutUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }
func Uint32(buf []byte) uint32       { return binary.LittleEndian.Uint32(buf) }

func PutUint64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }
func Uint64(buf []byte) uint64       { return binary.LittleEndian.Uint64(buf) }

func PutInt32(buf []byte, v int32) { binary.LittleEndian.PutUint32(buf, uint32(v)) }
func Int32(buf []byte) int32       { return int32(binary.LittleEndian.Uint32(buf)) }

func PutFloat32(buf []byte, v float32) { binary.LittleEndian.PutUint32(buf, math.Float32bits(v)) }
func Float32(buf []byte) float32       { return math.Float32frombits(binary.LittleEndian.Uint32(buf)) }

// PutBytes writes a 2-byte length prefix followed by data, returning the
// number of bytes written.
func PutBytes(buf []byte, data []byte) int {
	PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	return 2 + len(data)
}

// Bytes reads a length-prefixed byte string starting at buf[0], returning
// the decoded slice (a fresh copy) and the number of bytes consumed.
func Bytes(buf []byte) ([]byte, int) {
	n := int(Uint16(buf))
	out := make([]byte, n)
	copy(out, buf[2:2+n])
	return out, 2 + n
}

// PutString writes a length-prefixed string, mirroring PutBytes.
func PutString(buf []byte, s string) int {
	return PutBytes(buf, []byte(s))
}

func String(buf []byte) (string, int) {
	b, n := Bytes(buf)
	return string(b), n
}
