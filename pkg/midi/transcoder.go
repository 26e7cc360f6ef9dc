package midi

import (
	"container/heap"
	"log/slog"

	"github.com/zurustar/mfi2midi/pkg/binio"
	"github.com/zurustar/mfi2midi/pkg/mfi"
)

// pendingNoteOff is a note-off waiting for its gate time to expire.
type pendingNoteOff struct {
	channel uint8
	key     uint8
	tick    uint32 // absolute tick at which the note ends
	seq     uint64 // insertion order, breaks ties deterministically
}

// noteOffQueue is a min-heap ordered by tick, then insertion order.
type noteOffQueue []pendingNoteOff

func (q noteOffQueue) Len() int { return len(q) }

func (q noteOffQueue) Less(i, j int) bool {
	if q[i].tick != q[j].tick {
		return q[i].tick < q[j].tick
	}
	return q[i].seq < q[j].seq
}

func (q noteOffQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *noteOffQueue) Push(x any) { *q = append(*q, x.(pendingNoteOff)) }

func (q *noteOffQueue) Pop() any {
	old := *q
	n := len(old)
	top := old[n-1]
	*q = old[:n-1]
	return top
}

// Transcoder converts decoded MFi tracks into SMF track chunks. All state
// is per-track and reset by WriteTrack; nothing leaks between tracks.
type Transcoder struct {
	w   *binio.Writer
	log *slog.Logger

	absTicks uint32 // current absolute tick
	pending  uint32 // delta ticks owed to the next emitted event
	banks    [16]uint8
	noteOffs noteOffQueue
	seq      uint64
}

// NewTranscoder returns a Transcoder writing to w. log must not be nil.
func NewTranscoder(w *binio.Writer, log *slog.Logger) *Transcoder {
	return &Transcoder{w: w, log: log}
}

// WriteHeader writes the MThd chunk: format 1, one MIDI track per source
// track, timebase resolved from the first track. The whole song must be
// decoded before this is called, since both the track count and the
// timebase come from the decoded model.
func (t *Transcoder) WriteHeader(song *mfi.Song) error {
	t.w.U32BE(chunkMThd)
	t.w.U32BE(6)
	t.w.U16BE(1)
	t.w.U16BE(uint16(len(song.Tracks)))
	t.w.U16BE(ResolveTimebase(song))
	return t.w.Err()
}

// WriteTrack writes one MTrk chunk. channelOffset reserves four MIDI
// channels per source track: source channel c lands on MIDI channel
// channelOffset+c.
func (t *Transcoder) WriteTrack(track *mfi.Track, channelOffset uint8) error {
	t.absTicks = 0
	t.pending = 0
	t.banks = [16]uint8{}
	t.noteOffs = t.noteOffs[:0]

	t.w.U32BE(chunkMTrk)
	sizeOffset := t.w.Tell()
	t.w.U32BE(0) // back-patched below

	for _, ev := range track.Events {
		t.absTicks += uint32(ev.Delta)
		t.pending += uint32(ev.Delta)

		t.flushNoteOffs(false)

		switch ev.Kind {
		case mfi.EventNote:
			t.writeNoteOn(ev.Note, channelOffset)
		case mfi.EventTypeB:
			t.writeTypeB(ev.TypeB, channelOffset)
		case mfi.EventSysEx:
			// MFi system-exclusive payloads have no SMF equivalent;
			// the delta time stays accumulated for the next event.
			t.log.Warn("Dropping SysEx event",
				"class", ev.SysEx.Class, "id", ev.SysEx.ID, "size", len(ev.SysEx.Data))
		}
	}

	t.flushNoteOffs(true)

	endOffset := t.w.Tell()
	t.w.Seek(sizeOffset)
	t.w.U32BE(uint32(endOffset - sizeOffset - 4))
	t.w.Seek(endOffset)
	return t.w.Err()
}

// flushNoteOffs emits every pending note-off that is due at the current
// tick. Each emission spends only the portion of the pending delta up to
// the note-off's own tick, so note-offs interleave correctly with later
// events. With all set, note-offs scheduled past the current tick are
// emitted too, advancing time to each gate tick; this drains the schedule
// before the end-of-track meta event is written.
func (t *Transcoder) flushNoteOffs(all bool) {
	for t.noteOffs.Len() > 0 {
		off := t.noteOffs[0]
		if off.tick > t.absTicks {
			if !all {
				break
			}
			t.pending += off.tick - t.absTicks
			t.absTicks = off.tick
		}

		remainder := t.absTicks - off.tick
		t.pending -= remainder
		t.writeDelta()
		t.pending = remainder

		t.w.U8(CommandCodeNoteOff | off.channel)
		t.w.U8(off.key)
		t.w.U8(64)

		heap.Pop(&t.noteOffs)
	}
}

func (t *Transcoder) writeNoteOn(note mfi.NoteEvent, channelOffset uint8) {
	channel := (channelOffset + note.Channel) & 0x0F
	key := noteKey(note)

	t.writeDelta()
	t.w.U8(CommandCodeNoteOn | channel)
	t.w.U8(key)
	t.w.U8(note.Velocity * 2)

	t.seq++
	heap.Push(&t.noteOffs, pendingNoteOff{
		channel: channel,
		key:     key,
		tick:    t.absTicks + uint32(note.GateTime),
		seq:     t.seq,
	})
}

// noteKey maps an MFi key number to a MIDI key: base offset 45, shifted a
// whole number of octaves by the octave-shift field.
func noteKey(note mfi.NoteEvent) uint8 {
	key := note.Key + 45
	switch note.OctaveShift {
	case 1:
		key += 12
	case 2:
		key -= 24
	case 3:
		key -= 12
	}
	return key
}

func (t *Transcoder) writeTypeB(ev mfi.TypeBEvent, channelOffset uint8) {
	if ev.Class != mfi.EventClassSystem {
		t.log.Warn("Dropping type B event with unhandled class",
			"class", ev.Class, "id", ev.ID, "data", ev.Data)
		return
	}

	if ev.ID&0xF0 == mfi.EventTempoBase {
		t.writeTempo(ev.Data)
		return
	}

	channel := (channelOffset + ev.Data>>6) & 0x0F
	value := ev.Data & 0x3F

	switch ev.ID {
	case mfi.EventMasterVolume:
		// Universal real-time device master volume.
		t.writeDelta()
		t.w.U8(CommandCodeSysex)
		writeVarLen(t.w, 7)
		t.w.U32BE(0x7F7F0401)
		t.w.U8(0)
		t.w.U8(ev.Data)
		t.w.U8(CommandCodeEox)
	case mfi.EventEndOfTrack:
		t.flushNoteOffs(true)
		t.writeDelta()
		t.w.U8(CommandCodeMetaEvent)
		t.w.U8(MetaEventEndTrack)
		t.w.U8(0)
	case mfi.EventProgramSelect:
		t.writeDelta()
		t.w.U8(CommandCodePatchChange | channel)
		program := value
		if t.banks[channel] == 3 {
			// Bank 3 instruments live in the upper half of the GM
			// program table.
			program += 64
		}
		t.w.U8(program)
	case mfi.EventBankSelect:
		t.banks[channel] = value
		bank := value
		if bank == 2 || bank == 3 || bank == 0x3F {
			// Extended and drum banks have no GM counterpart; remap
			// to the capital bank.
			bank = 0
		}
		t.writeController(channel, ControllerBankSelect, bank)
	case mfi.EventVolume:
		t.writeController(channel, ControllerVolume, value*2)
	case mfi.EventPanpot:
		t.writeController(channel, ControllerPan, value*2)
	case mfi.EventPitchBend:
		bend := uint16(value) << 8
		t.writeDelta()
		t.w.U8(CommandCodePitchWheelChange | channel)
		t.w.U8(uint8(bend & 0x7F))
		t.w.U8(uint8(bend >> 7 & 0x7F))
	case mfi.EventModulation:
		t.writeController(channel, ControllerModWheel, value*2)
	default:
		t.log.Warn("Dropping unknown type B class 3 event", "id", ev.ID, "data", ev.Data)
	}
}

// writeTempo emits a set-tempo meta event. The MFi data byte is beats per
// minute at the quarter-note resolution selected by the command id.
func (t *Transcoder) writeTempo(data uint8) {
	if data == 0 {
		t.log.Warn("Dropping tempo event with zero beat value")
		return
	}
	t.writeDelta()
	t.w.U8(CommandCodeMetaEvent)
	t.w.U8(MetaEventSetTempo)
	t.w.U32BE(0x03000000 | 60_000_000/uint32(data))
}

func (t *Transcoder) writeController(channel, controller, value uint8) {
	t.writeDelta()
	t.w.U8(CommandCodeControlChange | channel)
	t.w.U8(controller)
	t.w.U8(value)
}

// writeDelta spends the accumulated delta time on the event about to be
// emitted.
func (t *Transcoder) writeDelta() {
	writeVarLen(t.w, t.pending)
	t.pending = 0
}
