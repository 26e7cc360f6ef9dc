// Package midi renders a decoded MFi song as a Standard MIDI File.
package midi

import (
	"github.com/zurustar/mfi2midi/pkg/binio"
)

// Status bytes.
const (
	CommandCodeNoteOff          = 0x80
	CommandCodeNoteOn           = 0x90
	CommandCodeControlChange    = 0xB0
	CommandCodePatchChange      = 0xC0
	CommandCodePitchWheelChange = 0xE0
	CommandCodeSysex            = 0xF0
	CommandCodeEox              = 0xF7
	CommandCodeMetaEvent        = 0xFF
)

// Meta event types.
const (
	MetaEventEndTrack = 0x2F
	MetaEventSetTempo = 0x51
)

// Controller numbers.
const (
	ControllerBankSelect = 0
	ControllerModWheel   = 1
	ControllerVolume     = 7
	ControllerPan        = 10
)

// Chunk tags.
const (
	chunkMThd = 0x4D546864
	chunkMTrk = 0x4D54726B
)

// writeVarLen writes value as a MIDI variable-length quantity: 7 data bits
// per byte, most significant group first, continuation flagged by the high
// bit.
func writeVarLen(w *binio.Writer, value uint32) {
	buffer := value & 0x7F
	for value >>= 7; value != 0; value >>= 7 {
		buffer <<= 8
		buffer |= value&0x7F | 0x80
	}
	for {
		w.U8(uint8(buffer))
		if buffer&0x80 == 0 {
			break
		}
		buffer >>= 8
	}
}
