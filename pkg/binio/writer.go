package binio

import (
	"fmt"
	"io"
)

// Writer writes big-endian integers to an io.WriteSeeker and supports
// seeking back to patch chunk length fields. The first write or seek error
// is latched; later calls become no-ops and Err reports the latched error.
// Callers check Err once per chunk instead of after every byte.
type Writer struct {
	w   io.WriteSeeker
	off int64
	err error
}

// NewWriter returns a Writer positioned at offset 0 of w.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}

// Tell returns the current write offset.
func (w *Writer) Tell() int64 {
	return w.off
}

// Seek moves the write position to an absolute offset.
func (w *Writer) Seek(off int64) {
	if w.err != nil {
		return
	}
	pos, err := w.w.Seek(off, io.SeekStart)
	if err != nil {
		w.err = err
		return
	}
	w.off = pos
}

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.Write([]byte{v})
}

// U16BE writes a big-endian 16-bit value.
func (w *Writer) U16BE(v uint16) {
	w.Write([]byte{byte(v >> 8), byte(v)})
}

// U32BE writes a big-endian 32-bit value.
func (w *Writer) U32BE(v uint32) {
	w.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// Write writes buf verbatim.
func (w *Writer) Write(buf []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(buf)
	w.off += int64(n)
	if err != nil {
		w.err = err
	} else if n < len(buf) {
		w.err = io.ErrShortWrite
	}
}

// SeekBuffer is an in-memory io.WriteSeeker. The whole MIDI file is
// rendered into one before anything touches the filesystem, so a failed
// conversion never leaves a partial output file behind.
type SeekBuffer struct {
	buf []byte
	pos int64
}

// Write implements io.Writer, extending the buffer as needed.
func (b *SeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		pos = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("binio: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("binio: negative seek position %d", pos)
	}
	b.pos = pos
	return pos, nil
}

// Bytes returns the rendered contents.
func (b *SeekBuffer) Bytes() []byte {
	return b.buf
}
