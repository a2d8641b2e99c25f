// Package ndr implements the subset of DCE/RPC's Network Data
// Representation used by the srvsvc pipe: little-endian scalars, 4-byte
// alignment, referent pointers, and conformant/varying UTF-16LE strings.
//
// Reference: [C706] DCE 1.1 Chapter 14 (Transfer Syntax NDR).
package ndr

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Writer accumulates an NDR-encoded byte stream and tracks the
// monotonically increasing referent-pointer counter for one response.
type Writer struct {
	buf          []byte
	nextReferent uint32
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{nextReferent: 1}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the current buffer length.
func (w *Writer) Len() int { return len(w.buf) }

// WriteUint16 appends a little-endian u16.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends a little-endian u32.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteUint64 appends a little-endian u64.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteUnionSelector writes the level discriminator once, as a u32; a
// caller that also needs the switch selector writes the level again.
func (w *Writer) WriteUnionSelector(level uint32) {
	w.WriteUint32(level)
}

// WriteNullReferent writes a zero (null) referent.
func (w *Writer) WriteNullReferent() {
	w.WriteUint32(0)
}

// WriteReferent allocates the next referent token, writes it, and returns
// it so the caller can track which deferred payload it promises.
func (w *Writer) WriteReferent() uint32 {
	ref := w.nextReferent
	w.nextReferent++
	w.WriteUint32(ref)
	return ref
}

// Align4 pads the buffer with zero bytes to the next 4-byte boundary.
func (w *Writer) Align4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

// WriteConformantVaryingString emits an NDR conformant+varying UTF-16LE
// string: max count, offset (always 0), actual count, the UTF-16LE code
// units, a trailing NUL, then padding to 4-byte alignment. Counts are in
// code units including the terminating NUL, not bytes.
func (w *Writer) WriteConformantVaryingString(s string) error {
	units, err := encodeUTF16LE(s)
	if err != nil {
		return fmt.Errorf("ndr: encode string: %w", err)
	}
	count := uint32(len(units)/2) + 1 // + NUL
	w.WriteUint32(count)              // max count
	w.WriteUint32(0)                  // offset
	w.WriteUint32(count)              // actual count
	w.buf = append(w.buf, units...)
	w.buf = append(w.buf, 0, 0) // NUL terminator
	w.Align4()
	return nil
}

func encodeUTF16LE(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

func decodeUTF16LE(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Reader parses an NDR-encoded byte stream with an advancing cursor.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps buf for sequential NDR reads.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Offset returns the current read cursor.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("ndr: truncated: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

// ReadUint16 reads a little-endian u16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// ReadUint32 reads a little-endian u32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// ReadUint64 reads a little-endian u64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// ReadReferent reads a raw u32 referent token (0 means null).
func (r *Reader) ReadReferent() (uint32, error) {
	return r.ReadUint32()
}

// ReadUnionSelector reads the u32 level discriminator.
func (r *Reader) ReadUnionSelector() (uint32, error) {
	return r.ReadUint32()
}

// Align4 advances the cursor to the next 4-byte boundary, validating the
// skipped bytes stay within the buffer.
func (r *Reader) Align4() error {
	pad := (4 - (r.off % 4)) % 4
	if pad == 0 {
		return nil
	}
	if err := r.need(pad); err != nil {
		return err
	}
	r.off += pad
	return nil
}

// ReadConformantVaryingString reads an NDR conformant+varying UTF-16LE
// string: max count, offset, actual count, then actual_count-1 code units
// plus a trailing NUL, then alignment padding.
func (r *Reader) ReadConformantVaryingString() (string, error) {
	maxCount, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	offset, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if offset != 0 {
		return "", fmt.Errorf("ndr: non-zero string offset %d", offset)
	}
	actualCount, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if actualCount == 0 || actualCount > maxCount {
		return "", fmt.Errorf("ndr: invalid string actual_count=%d max_count=%d", actualCount, maxCount)
	}
	byteLen := int(actualCount) * 2
	if err := r.need(byteLen); err != nil {
		return "", err
	}
	units := r.buf[r.off : r.off+byteLen]
	r.off += byteLen

	// Strip the trailing NUL code unit before transcoding.
	if len(units) < 2 {
		return "", fmt.Errorf("ndr: string missing NUL terminator")
	}
	s, err := decodeUTF16LE(units[:len(units)-2])
	if err != nil {
		return "", fmt.Errorf("ndr: decode string: %w", err)
	}
	if err := r.Align4(); err != nil {
		return "", err
	}
	return s, nil
}
