// Package mfi decodes MFi ringtone files (the chunked `melo` container used
// by i-mode handsets) into an in-memory song model.
package mfi

// EventKind discriminates the event variants carried by a track.
type EventKind uint8

const (
	EventNote EventKind = iota
	EventTypeB
	EventSysEx
)

// Type B event ids, valid with class 3. Other ids and classes are carried
// through the model untouched and dropped by the transcoder.
const (
	EventClassSystem = 3

	EventMasterVolume  = 0xB0
	EventTempoBase     = 0xC0 // 0xC0..0xCF, low nibble selects the timebase
	EventEndOfTrack    = 0xDF
	EventProgramSelect = 0xE0
	EventBankSelect    = 0xE1
	EventVolume        = 0xE2
	EventPanpot        = 0xE3
	EventPitchBend     = 0xE4
	EventModulation    = 0xEA
)

// NoteEvent is a sounding note. The note-off is implicit: the note ends
// GateTime ticks after it starts.
type NoteEvent struct {
	Channel     uint8 // 0-3
	Key         uint8 // 0-0x3E; 0x3F is the escape marker and never stored
	GateTime    uint8
	Velocity    uint8 // 0-63, 63 under the short note format
	OctaveShift uint8 // 0-3, resolved to a pitch offset at transcode time
}

// TypeBEvent is a control event (tempo, program, volume, ...).
type TypeBEvent struct {
	Class uint8 // 0-3; only class 3 carries meaning
	ID    uint8 // 0x80-0xFF
	Data  uint8
}

// SysExEvent carries an opaque system-exclusive payload. Data is owned by
// the event.
type SysExEvent struct {
	Class uint8
	ID    uint8 // >= 0xF0
	Data  []byte
}

// Event is one decoded track event. Kind selects which of the three
// variant fields is populated; the others stay zero.
type Event struct {
	Kind  EventKind
	Delta uint8 // ticks since the previous event in the track

	Note  NoteEvent
	TypeB TypeBEvent
	SysEx SysExEvent
}

// IsEndOfTrack reports whether ev is the class-3 end-of-track marker.
func (ev Event) IsEndOfTrack() bool {
	return ev.Kind == EventTypeB &&
		ev.TypeB.Class == EventClassSystem &&
		ev.TypeB.ID == EventEndOfTrack
}

// Track is an ordered sequence of events ending with the end-of-track
// marker.
type Track struct {
	Events []Event

	absTicks uint32
}

// Append adds ev to the track and advances the absolute tick counter by the
// event's delta time.
func (t *Track) Append(ev Event) {
	t.absTicks += uint32(ev.Delta)
	t.Events = append(t.Events, ev)
}

// AbsoluteTicks returns the sum of all delta times appended so far.
func (t *Track) AbsoluteTicks() uint32 {
	return t.absTicks
}

// Song is an ordered sequence of tracks, in file order.
type Song struct {
	Tracks []*Track
}

// StartTrack appends an empty track and returns it.
func (s *Song) StartTrack() *Track {
	t := &Track{}
	s.Tracks = append(s.Tracks, t)
	return t
}
