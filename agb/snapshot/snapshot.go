// Package snapshot implements the save-state wire encoding: a little-endian
// byte stream with a "RBAV" magic, a format version and a ROM checksum,
// followed by each subsystem's fields in a fixed order. The format has no
// self-description, compatibility is the version number's job.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic are the first four bytes of every save state.
	Magic = "RBAV"
	// Version is bumped whenever the field layout changes.
	Version uint32 = 1
)

var (
	ErrBadMagic     = errors.New("snapshot: bad magic")
	ErrBadVersion   = errors.New("snapshot: unsupported version")
	ErrShortBuffer  = errors.New("snapshot: truncated data")
	ErrTrailingData = errors.New("snapshot: trailing data")
)

// Writer serializes fields into a byte stream.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	w := &Writer{buf: make([]byte, 0, 1<<16)}
	w.Bytes([]byte(Magic))
	w.U32(Version)
	return w
}

func (w *Writer) Bytes(b []byte)  { w.buf = append(w.buf, b...) }
func (w *Writer) U8(v uint8)      { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16)    { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32)    { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64)    { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *Writer) I16(v int16)     { w.U16(uint16(v)) }
func (w *Writer) I32(v int32)     { w.U32(uint32(v)) }
func (w *Writer) I64(v int64)     { w.U64(uint64(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// VarBytes writes a length-prefixed byte slice.
func (w *Writer) VarBytes(b []byte) {
	w.U32(uint32(len(b)))
	w.Bytes(b)
}

// Data returns the serialized stream.
func (w *Writer) Data() []byte {
	return w.buf
}

// Reader deserializes fields from a byte stream produced by Writer.
// Errors are sticky: after the first failure every read returns zero values
// and Err reports the failure.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(data []byte) (*Reader, error) {
	r := &Reader{buf: data}
	magic := r.Take(4)
	if r.err != nil || string(magic) != Magic {
		return nil, ErrBadMagic
	}
	if v := r.U32(); r.err != nil || v != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	return r, nil
}

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrShortBuffer
	}
}

// Take consumes n raw bytes from the stream.
func (r *Reader) Take(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		r.fail()
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// ReadInto fills dst from the stream.
func (r *Reader) ReadInto(dst []byte) {
	copy(dst, r.Take(len(dst)))
}

func (r *Reader) U8() uint8   { return r.Take(1)[0] }
func (r *Reader) U16() uint16 { return binary.LittleEndian.Uint16(r.Take(2)) }
func (r *Reader) U32() uint32 { return binary.LittleEndian.Uint32(r.Take(4)) }
func (r *Reader) U64() uint64 { return binary.LittleEndian.Uint64(r.Take(8)) }
func (r *Reader) I16() int16  { return int16(r.U16()) }
func (r *Reader) I32() int32  { return int32(r.U32()) }
func (r *Reader) I64() int64  { return int64(r.U64()) }
func (r *Reader) Bool() bool  { return r.U8() != 0 }

// VarBytes reads a length-prefixed byte slice.
func (r *Reader) VarBytes() []byte {
	n := int(r.U32())
	if r.err != nil || r.off+n > len(r.buf) {
		r.fail()
		return nil
	}
	out := make([]byte, n)
	r.ReadInto(out)
	return out
}

// Err returns the first decoding failure, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close verifies the stream was fully consumed.
func (r *Reader) Close() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrTrailingData
	}
	return nil
}
