package app

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

// SampleRate is the audio sample rate used for MIDI synthesis.
const SampleRate = 44100

// releaseTail keeps the audio device open after the last event so note
// releases are not cut off.
const releaseTail = time.Second / 2

// Player synthesizes a MIDI byte stream through a SoundFont and plays it on
// the default audio device.
type Player struct {
	synth *meltysynth.Synthesizer
	log   *slog.Logger
}

// NewPlayer loads the SoundFont and prepares a synthesizer.
func NewPlayer(soundFontPath string, log *slog.Logger) (*Player, error) {
	sf2Data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(sf2Data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	return &Player{synth: synth, log: log}, nil
}

// Play renders midiData and blocks until playback completes.
func (p *Player) Play(midiData []byte) error {
	midiFile, err := meltysynth.NewMidiFile(bytes.NewReader(midiData))
	if err != nil {
		return fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	sequencer := meltysynth.NewMidiFileSequencer(p.synth)
	sequencer.Play(midiFile, false) // loop=false

	duration := midiFile.GetLength() + releaseTail
	totalSamples := int64(duration.Seconds() * SampleRate)
	p.log.Info("Playback started", "duration", duration.Round(time.Millisecond))

	stream := &pcmStream{sequencer: sequencer, samplesLeft: totalSamples}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(stream)
	player.Play()
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}

	p.log.Info("Playback finished")
	return player.Close()
}

// pcmStream renders sequencer output as interleaved 16-bit stereo PCM and
// reports EOF once the sequence (plus the release tail) has been rendered.
type pcmStream struct {
	sequencer   *meltysynth.MidiFileSequencer
	samplesLeft int64
}

// Read implements io.Reader for the audio device.
func (s *pcmStream) Read(buf []byte) (int, error) {
	if s.samplesLeft <= 0 {
		return 0, io.EOF
	}

	// 16-bit stereo: 4 bytes per sample frame.
	samples := int64(len(buf) / 4)
	if samples == 0 {
		return 0, nil
	}
	if samples > s.samplesLeft {
		samples = s.samplesLeft
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.sequencer.Render(left, right)
	s.samplesLeft -= samples

	for i := range left {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(r))
	}

	return int(samples) * 4, nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
