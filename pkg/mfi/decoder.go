package mfi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zurustar/mfi2midi/pkg/binio"
)

// ErrFormat is returned for any fatal format violation: bad magic, wrong
// fixed-size sub-chunk body, undecodable event encoding, or truncated input.
var ErrFormat = errors.New("mfi: invalid format")

// Container and sub-chunk FourCC tags.
const (
	magicMelo    = 0x6D656C6F // "melo"
	fourCCNote   = 0x6E6F7465 // "note"
	fourCCAinf   = 0x61696E66 // "ainf"
	fourCCTrack  = 0x74726163 // "trac"
	escapeKey    = 0x3F
	sysExIDMask  = 0xF0
	commandIDBit = 0x80
)

// ContentType is the container content-type byte.
type ContentType uint8

const (
	ContentMelody ContentType = 1
	ContentSong   ContentType = 2
)

// NoteFormat selects how many bytes a note event occupies.
type NoteFormat uint16

const (
	// NoteFormatShort omits the velocity/octave byte; velocity defaults
	// to 63 and octave shift to 0.
	NoteFormatShort NoteFormat = 0
	// NoteFormatLong packs velocity (upper 6 bits) and octave shift
	// (lower 2 bits) into one extra byte per note.
	NoteFormatLong NoteFormat = 1
)

// Decoder reads one MFi container from a byte source.
type Decoder struct {
	r          *binio.Reader
	log        *slog.Logger
	noteFormat NoteFormat
}

// NewDecoder returns a Decoder reading from r. log must not be nil.
func NewDecoder(r *binio.Reader, log *slog.Logger) *Decoder {
	return &Decoder{r: r, log: log, noteFormat: NoteFormatShort}
}

// Decode parses the container header, skips any ADPCM audio chunks, and
// decodes every track until the declared total length is consumed.
func (d *Decoder) Decode() (*Song, error) {
	magic, err := d.r.U32BE()
	if err != nil {
		return nil, truncated("magic", err)
	}
	if magic != magicMelo {
		return nil, fmt.Errorf("%w: melo header missing", ErrFormat)
	}

	fileLength, err := d.r.U32BE()
	if err != nil {
		return nil, truncated("file length", err)
	}
	fileStart := d.r.Tell()

	headerLength, err := d.r.U16BE()
	if err != nil {
		return nil, truncated("header length", err)
	}
	headerStart := d.r.Tell()

	contentType, err := d.r.U8()
	if err != nil {
		return nil, truncated("content type", err)
	}
	// Melody carries a complete/part byte, song a sub-type byte. Neither
	// alters decoding; both are consumed to keep the header walk aligned.
	subType, err := d.r.U8()
	if err != nil {
		return nil, truncated("content sub-type", err)
	}
	d.log.Debug("Container header", "contentType", contentType, "subType", subType)

	numTrackChunks, err := d.r.U8()
	if err != nil {
		return nil, truncated("track chunk count", err)
	}

	numAdpcmChunks := uint16(0)
	for d.r.Tell()-headerStart < int64(headerLength) {
		fourCC, err := d.r.U32BE()
		if err != nil {
			return nil, truncated("sub-chunk tag", err)
		}
		size, err := d.r.U16BE()
		if err != nil {
			return nil, truncated("sub-chunk size", err)
		}
		d.log.Debug("Sub-chunk", "fourCC", fourCCString(fourCC), "size", size)

		switch fourCC {
		case fourCCNote:
			if size != 2 {
				return nil, fmt.Errorf("%w: note sub-chunk size %d, want 2", ErrFormat, size)
			}
			v, err := d.r.U16BE()
			if err != nil {
				return nil, truncated("note format", err)
			}
			d.noteFormat = NoteFormat(v)
		case fourCCAinf:
			if size != 2 {
				return nil, fmt.Errorf("%w: ADPCM info sub-chunk size %d, want 2", ErrFormat, size)
			}
			numAdpcmChunks, err = d.r.U16LE()
			if err != nil {
				return nil, truncated("ADPCM chunk count", err)
			}
		default:
			if err := d.r.Skip(int64(size)); err != nil {
				return nil, truncated("sub-chunk body", err)
			}
		}
	}

	// ADPCM payloads are located and skipped, never decoded.
	for i := uint16(0); i < numAdpcmChunks; i++ {
		fourCC, err := d.r.U32BE()
		if err != nil {
			return nil, truncated("ADPCM chunk tag", err)
		}
		size, err := d.r.U32BE()
		if err != nil {
			return nil, truncated("ADPCM chunk size", err)
		}
		d.log.Debug("ADPCM chunk", "fourCC", fourCCString(fourCC), "size", size)
		if err := d.r.Skip(int64(size)); err != nil {
			return nil, truncated("ADPCM chunk body", err)
		}
	}

	d.log.Debug("Declared track chunks", "count", numTrackChunks)

	song := &Song{}
	for d.r.Tell()-fileStart < int64(fileLength) {
		if err := d.decodeTrack(song); err != nil {
			return nil, err
		}
	}
	if len(song.Tracks) != int(numTrackChunks) {
		d.log.Warn("Track count mismatch",
			"declared", numTrackChunks, "decoded", len(song.Tracks))
	}
	return song, nil
}

// decodeTrack consumes one `trac` chunk: an event stream terminated by the
// class-3 end-of-track command. The declared chunk size is logged but the
// event stream itself is authoritative.
func (d *Decoder) decodeTrack(song *Song) error {
	fourCC, err := d.r.U32BE()
	if err != nil {
		return truncated("track chunk tag", err)
	}
	if fourCC != fourCCTrack {
		return fmt.Errorf("%w: track FourCC %q, want \"trac\"", ErrFormat, fourCCString(fourCC))
	}
	size, err := d.r.U32BE()
	if err != nil {
		return truncated("track chunk size", err)
	}
	d.log.Debug("Track chunk", "index", len(song.Tracks), "size", size)

	track := song.StartTrack()
	for {
		delta, err := d.r.U8()
		if err != nil {
			return truncated("delta time", err)
		}
		status, err := d.r.U8()
		if err != nil {
			return truncated("status byte", err)
		}
		channel := status >> 6
		key := status & 0x3F

		if key != escapeKey {
			ev, err := d.readNote(delta, channel, key)
			if err != nil {
				return err
			}
			track.Append(ev)
			d.log.Debug("Note", "tick", track.AbsoluteTicks(), "channel", channel, "key", key)
			continue
		}

		first, err := d.r.U8()
		if err != nil {
			return truncated("escape byte", err)
		}
		switch {
		case first&sysExIDMask == sysExIDMask:
			ev, err := d.readSysEx(delta, channel, first)
			if err != nil {
				return err
			}
			track.Append(ev)
			d.log.Debug("SysEx", "tick", track.AbsoluteTicks(),
				"class", channel, "id", first, "size", len(ev.SysEx.Data))
		case first&commandIDBit == commandIDBit:
			data, err := d.r.U8()
			if err != nil {
				return truncated("command data", err)
			}
			ev := Event{
				Kind:  EventTypeB,
				Delta: delta,
				TypeB: TypeBEvent{Class: channel, ID: first, Data: data},
			}
			track.Append(ev)
			d.log.Debug("Type B", "tick", track.AbsoluteTicks(),
				"class", channel, "id", first, "data", data)
			if ev.IsEndOfTrack() {
				return nil
			}
		default:
			return fmt.Errorf("%w: unsupported event encoding %#02x at offset %d",
				ErrFormat, first, d.r.Tell())
		}
	}
}

func (d *Decoder) readNote(delta, channel, key uint8) (Event, error) {
	gateTime, err := d.r.U8()
	if err != nil {
		return Event{}, truncated("gate time", err)
	}
	velocity, octaveShift := uint8(63), uint8(0)
	if d.noteFormat == NoteFormatLong {
		vos, err := d.r.U8()
		if err != nil {
			return Event{}, truncated("velocity byte", err)
		}
		octaveShift = vos & 0x3
		velocity = vos >> 2
	}
	return Event{
		Kind:  EventNote,
		Delta: delta,
		Note: NoteEvent{
			Channel:     channel,
			Key:         key,
			GateTime:    gateTime,
			Velocity:    velocity,
			OctaveShift: octaveShift,
		},
	}, nil
}

func (d *Decoder) readSysEx(delta, class, id uint8) (Event, error) {
	size, err := d.r.U16BE()
	if err != nil {
		return Event{}, truncated("sysex length", err)
	}
	data, err := d.r.Bytes(int(size))
	if err != nil {
		return Event{}, truncated("sysex payload", err)
	}
	return Event{
		Kind:  EventSysEx,
		Delta: delta,
		SysEx: SysExEvent{Class: class, ID: id, Data: data},
	}, nil
}

func truncated(what string, err error) error {
	return fmt.Errorf("%w: reading %s: %v", ErrFormat, what, err)
}

func fourCCString(v uint32) string {
	return string([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
