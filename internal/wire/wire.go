// Package wire frames cached values for storage in a byte provider.
//
// Frame: magic(4) | ver(1) | version(u64 be) | seq(u64 be) | klen(u16 be) | key(klen) | vlen(u32 be) | payload(vlen)
//
// The resource version, the fetch sequence and the full canonical key travel with
// the payload so a reader can reject values written under an older version, by a
// superseded fetch, or under a different key that hashed to the same storage slot.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const format byte = 1

var (
	ErrCorrupt  = errors.New("querycache: corrupt entry")
	ErrKeyRange = errors.New("querycache: key length out of range")
	magic4      = [...]byte{'Q', 'C', 'F', 'R'}
)

const header = 4 + 1 + 8 + 8 + 2

// Frame is one stored value.
type Frame struct {
	Version uint64 // resource version observed when the fetch began
	Seq     uint64 // identifies the fetch that produced Payload
	Key     string
	Payload []byte
}

// Encode frames f. Keys must be 1..65535 bytes.
func Encode(f Frame) ([]byte, error) {
	if l := len(f.Key); l == 0 || l > 0xFFFF {
		return nil, ErrKeyRange
	}

	var buf bytes.Buffer
	buf.Grow(header + len(f.Key) + 4 + len(f.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(format)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], f.Version)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], f.Seq)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(f.Key)))
	buf.Write(u2[:])
	buf.WriteString(f.Key)

	binary.BigEndian.PutUint32(u4[:], uint32(len(f.Payload)))
	buf.Write(u4[:])
	buf.Write(f.Payload)

	return buf.Bytes(), nil
}

// Decode parses a frame. The payload aliases b.
func Decode(b []byte) (Frame, error) {
	if len(b) < header || !bytes.Equal(b[:4], magic4[:]) || b[4] != format {
		return Frame{}, ErrCorrupt
	}
	off := 5

	ver := binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	seq := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen == 0 || klen > len(b)-off {
		return Frame{}, ErrCorrupt
	}
	key := string(b[off : off+klen])
	off += klen

	if off+4 > len(b) {
		return Frame{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact length: trailing bytes mean a foreign or truncated write
	if vlen != len(b)-off {
		return Frame{}, ErrCorrupt
	}

	return Frame{Version: ver, Seq: seq, Key: key, Payload: b[off : off+vlen]}, nil
}
