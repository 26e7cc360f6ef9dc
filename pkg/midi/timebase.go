package midi

import (
	"github.com/zurustar/mfi2midi/pkg/mfi"
)

// DefaultTimebase is used when the first track carries no timebase-select
// event.
const DefaultTimebase = 48

// TimebaseFromCode maps the low nibble of a tempo/timebase command id to
// ticks per quarter note.
func TimebaseFromCode(code uint8) uint16 {
	if code >= 8 {
		return 15 << (code - 8)
	}
	return 6 << code
}

// ResolveTimebase scans the first track for the first class-3 tempo command
// (id 0xC0-0xCF) and returns the timebase its low nibble selects.
func ResolveTimebase(song *mfi.Song) uint16 {
	if len(song.Tracks) == 0 {
		return DefaultTimebase
	}
	for _, ev := range song.Tracks[0].Events {
		if ev.Kind != mfi.EventTypeB || ev.TypeB.Class != mfi.EventClassSystem {
			continue
		}
		if ev.TypeB.ID&0xF0 == mfi.EventTempoBase {
			return TimebaseFromCode(ev.TypeB.ID & 0x0F)
		}
	}
	return DefaultTimebase
}
