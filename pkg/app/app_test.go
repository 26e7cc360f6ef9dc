package app

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/mfi2midi/pkg/mfi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func u16(v int) []byte { return []byte{byte(v >> 8), byte(v)} }
func u32(v int) []byte { return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)} }

// buildContainer assembles a short-format `melo` container around the given
// track bodies.
func buildContainer(trackBodies ...[]byte) []byte {
	var body bytes.Buffer
	body.Write(u16(3 + 8)) // fixed header fields plus the note sub-chunk
	body.WriteByte(byte(mfi.ContentMelody))
	body.WriteByte(1)
	body.WriteByte(byte(len(trackBodies)))
	body.WriteString("note")
	body.Write(u16(2))
	body.Write(u16(int(mfi.NoteFormatShort)))
	for _, tb := range trackBodies {
		body.WriteString("trac")
		body.Write(u32(len(tb)))
		body.Write(tb)
	}

	var out bytes.Buffer
	out.WriteString("melo")
	out.Write(u32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func endMarker(delta byte) []byte {
	return []byte{delta, 0xFF, 0xDF, 0x00}
}

func TestConvert_MinimalContainer(t *testing.T) {
	input := buildContainer(append([]byte{0, 0x0A, 5}, endMarker(0)...))

	out, err := Convert(input, testLogger())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6,
		0, 1, // format 1
		0, 1, // one track
		0, 48, // default timebase
		'M', 'T', 'r', 'k', 0, 0, 0, 12,
		0x00, 0x90, 55, 126,
		0x05, 0x80, 55, 64,
		0x00, 0xFF, 0x2F, 0x00,
	}
	if !bytes.Equal(out, want) {
		t.Errorf("Convert output:\n got % x\nwant % x", out, want)
	}
}

func TestConvert_FormatError(t *testing.T) {
	input := buildContainer(endMarker(0))
	input[0] = 'x'
	if _, err := Convert(input, testLogger()); !errors.Is(err, mfi.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}

func TestConvert_TruncatedContainer(t *testing.T) {
	input := buildContainer(append([]byte{0, 0x0A, 5}, endMarker(0)...))
	if _, err := Convert(input[:len(input)-2], testLogger()); !errors.Is(err, mfi.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}

func TestConvert_MultiTrackChannelOffsets(t *testing.T) {
	input := buildContainer(
		append([]byte{0, 0x0A, 5}, endMarker(0)...),
		append([]byte{0, 0x0A, 5}, endMarker(0)...),
	)
	out, err := Convert(input, testLogger())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("smf.ReadFrom failed: %v", err)
	}
	if len(parsed.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(parsed.Tracks))
	}

	var ch, key, vel uint8
	channelOf := func(track smf.Track) uint8 {
		for _, ev := range track {
			if ev.Message.GetNoteOn(&ch, &key, &vel) {
				return ch
			}
		}
		t.Fatal("no note-on in track")
		return 0
	}
	if got := channelOf(parsed.Tracks[0]); got != 0 {
		t.Errorf("track 0 channel = %d, want 0", got)
	}
	if got := channelOf(parsed.Tracks[1]); got != 4 {
		t.Errorf("track 1 channel = %d, want 4", got)
	}
}

func TestConvert_OutputParsesWithMeltysynth(t *testing.T) {
	track := append([]byte{
		0, 0xFF, 0xC3, 120, // tempo
		0, 0x0A, 24,
		12, 0x0C, 24,
	}, endMarker(24)...)
	out, err := Convert(buildContainer(track), testLogger())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if _, err := meltysynth.NewMidiFile(bytes.NewReader(out)); err != nil {
		t.Errorf("meltysynth rejected the output: %v", err)
	}
}

func TestApplication_Run(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.mld")
	output := filepath.Join(dir, "test.mid")

	data := buildContainer(append([]byte{0, 0x0A, 5}, endMarker(0)...))
	if err := os.WriteFile(input, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := New().Run([]string{input, output}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("MThd")) {
		t.Errorf("output does not start with MThd: % x", out[:8])
	}
}

func TestApplication_Run_InvalidInputWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.mld")
	output := filepath.Join(dir, "bad.mid")

	if err := os.WriteFile(input, []byte("not an mfi file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New().Run([]string{input, output}); err == nil {
		t.Fatal("Run should fail on a malformed input")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output file must not exist after a failed conversion: %v", err)
	}
}

func TestApplication_Run_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"one argument", []string{"in.mld"}},
		{"three arguments", []string{"a", "b", "c"}},
		{"play without soundfont", []string{"-play", "in.mld", "out.mid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New().Run(tt.args); err == nil {
				t.Error("Run should fail")
			}
		})
	}
}
