// Package binio provides the byte source and sink used by the MFi decoder
// and the MIDI transcoder. MFi and SMF are both big-endian chunk formats;
// the single little-endian read (the ADPCM info count) gets its own method.
package binio

import (
	"io"
)

// Reader reads fixed-width integers from a byte stream and tracks the
// absolute offset for chunk-length accounting. A read that cannot deliver
// the full width fails with io.ErrUnexpectedEOF; callers treat that as a
// truncated-input format error.
type Reader struct {
	r   io.Reader
	off int64
}

// NewReader returns a Reader positioned at offset 0 of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Tell returns the number of bytes consumed so far.
func (r *Reader) Tell() int64 {
	return r.off
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	var buf [1]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// U16BE reads a big-endian 16-bit value.
func (r *Reader) U16BE() (uint16, error) {
	var buf [2]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// U16LE reads a little-endian 16-bit value.
func (r *Reader) U16LE() (uint16, error) {
	var buf [2]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[1])<<8 | uint16(buf[0]), nil
}

// U32BE reads a big-endian 32-bit value.
func (r *Reader) U32BE() (uint32, error) {
	var buf [4]byte
	if err := r.fill(buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

// Bytes reads exactly n bytes into a fresh slice owned by the caller.
func (r *Reader) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Skip discards the next n bytes.
func (r *Reader) Skip(n int64) error {
	written, err := io.CopyN(io.Discard, r.r, n)
	r.off += written
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (r *Reader) fill(buf []byte) error {
	n, err := io.ReadFull(r.r, buf)
	r.off += int64(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
