// Package binary provides a big-endian primitive decoder for BGV streams.
//
// Every Read method has a Skip twin that advances the cursor by exactly the
// same number of bytes without building the value. The decoder knows nothing
// about the BGV grammar; it only checks that enough bytes are available.
package binary

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrTruncated is the sentinel wrapped by every TruncatedStreamError.
var ErrTruncated = errors.New("truncated stream")

// TruncatedStreamError reports that the underlying source ran out of bytes
// in the middle of a decode.
type TruncatedStreamError struct {
	// Offset is the byte offset at which the short read started.
	Offset int64

	// Requested is the number of bytes the decode needed.
	Requested int64

	// Available is the number of bytes that were actually there.
	Available int64
}

func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("%s at offset %d: wanted %d bytes, got %d",
		ErrTruncated.Error(), e.Offset, e.Requested, e.Available)
}

func (e *TruncatedStreamError) Unwrap() error { return ErrTruncated }

// Decoder reads big-endian values from a byte source and tracks the
// absolute offset of its cursor.
type Decoder struct {
	r       *bufio.Reader
	offset  int64
	scratch [8]byte
}

// NewDecoder wraps r. The reader is buffered internally, so callers should
// not read from r directly once a Decoder owns it.
func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &Decoder{r: br}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// EOF reports whether the source has no more bytes. Errors other than
// io.EOF are treated as "not at end" so the next read surfaces them.
func (d *Decoder) EOF() bool {
	_, err := d.r.Peek(1)
	return errors.Is(err, io.EOF)
}

// PeekInt8 returns the next byte as a signed value without consuming it.
func (d *Decoder) PeekInt8() (int8, error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return 0, d.truncated(1, int64(len(b)), err)
	}
	return int8(b[0]), nil
}

// fill reads exactly n (≤ 8) bytes into the scratch buffer.
func (d *Decoder) fill(n int) ([]byte, error) {
	buf := d.scratch[:n]
	got, err := io.ReadFull(d.r, buf)
	if err != nil {
		return nil, d.truncated(int64(n), int64(got), err)
	}
	d.offset += int64(n)
	return buf, nil
}

func (d *Decoder) truncated(requested, available int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		e := &TruncatedStreamError{Offset: d.offset, Requested: requested, Available: available}
		d.offset += available
		return e
	}
	d.offset += available
	return fmt.Errorf("reading at offset %d: %w", d.offset, err)
}

// Skip advances the cursor by n bytes.
func (d *Decoder) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("negative skip %d at offset %d", n, d.offset)
	}
	got, err := io.CopyN(io.Discard, d.r, n)
	if err != nil {
		return d.truncated(n, got, err)
	}
	d.offset += n
	return nil
}

// ReadUint8 reads one unsigned byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// SkipUint8 skips one byte.
func (d *Decoder) SkipUint8() error { return d.Skip(1) }

// ReadInt8 reads one signed byte.
func (d *Decoder) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

// SkipInt8 skips count signed bytes.
func (d *Decoder) SkipInt8(count int64) error { return d.Skip(count) }

// ReadUint16 reads a big-endian uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// SkipUint16 skips count uint16 values.
func (d *Decoder) SkipUint16(count int64) error { return d.Skip(2 * count) }

// ReadInt16 reads a big-endian int16.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// SkipInt16 skips count int16 values.
func (d *Decoder) SkipInt16(count int64) error { return d.Skip(2 * count) }

// ReadUint32 reads a big-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// SkipUint32 skips count uint32 values.
func (d *Decoder) SkipUint32(count int64) error { return d.Skip(4 * count) }

// ReadInt32 reads a big-endian int32.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// SkipInt32 skips count int32 values.
func (d *Decoder) SkipInt32(count int64) error { return d.Skip(4 * count) }

// ReadUint64 reads a big-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// SkipUint64 skips count uint64 values.
func (d *Decoder) SkipUint64(count int64) error { return d.Skip(8 * count) }

// ReadInt64 reads a big-endian int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// SkipInt64 skips count int64 values.
func (d *Decoder) SkipInt64(count int64) error { return d.Skip(8 * count) }

// ReadFloat32 reads a big-endian IEEE 754 single.
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

// SkipFloat32 skips count float32 values.
func (d *Decoder) SkipFloat32(count int64) error { return d.Skip(4 * count) }

// ReadFloat64 reads a big-endian IEEE 754 double.
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// SkipFloat64 skips count float64 values.
func (d *Decoder) SkipFloat64(count int64) error { return d.Skip(8 * count) }

// ReadBytes reads exactly n bytes. Memory grows with the bytes actually
// delivered, so a corrupt length cannot force a huge allocation up front.
func (d *Decoder) ReadBytes(n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d at offset %d", n, d.offset)
	}
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, d.r, n)
	if err != nil {
		return nil, d.truncated(n, got, err)
	}
	d.offset += n
	return buf.Bytes(), nil
}

// SkipBytes skips n bytes.
func (d *Decoder) SkipBytes(n int64) error { return d.Skip(n) }

// ReadUTF8 reads n bytes as a string. The bytes are not validated.
func (d *Decoder) ReadUTF8(n int64) (string, error) {
	b, err := d.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SkipUTF8 skips an n-byte string.
func (d *Decoder) SkipUTF8(n int64) error { return d.Skip(n) }
