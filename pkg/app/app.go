// Package app wires the CLI, the MFi decoder and the MIDI transcoder
// together.
package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/zurustar/mfi2midi/pkg/binio"
	"github.com/zurustar/mfi2midi/pkg/cli"
	"github.com/zurustar/mfi2midi/pkg/logger"
	"github.com/zurustar/mfi2midi/pkg/mfi"
	"github.com/zurustar/mfi2midi/pkg/midi"
)

// ChannelsPerTrack is the number of MIDI channels reserved for each source
// track.
const ChannelsPerTrack = 4

// Application runs one conversion.
type Application struct {
	config *cli.Config
	log    *slog.Logger
}

// New creates an Application.
func New() *Application {
	return &Application{}
}

// Run parses args, converts the input file and writes the output file.
// With -play it then plays the result through the given SoundFont.
func (app *Application) Run(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		cli.PrintHelp()
		return err
	}
	app.config = config

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()

	app.log.Info("Conversion started",
		"input", app.config.InputPath, "output", app.config.OutputPath)

	data, err := os.ReadFile(app.config.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	midiData, err := Convert(data, app.log)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", app.config.InputPath, err)
	}

	if err := os.WriteFile(app.config.OutputPath, midiData, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.log.Info("Conversion finished",
		"output", app.config.OutputPath, "bytes", len(midiData))

	if app.config.Play {
		player, err := NewPlayer(app.config.SoundFontPath, app.log)
		if err != nil {
			return fmt.Errorf("failed to initialize playback: %w", err)
		}
		if err := player.Play(midiData); err != nil {
			return fmt.Errorf("failed to play %s: %w", app.config.OutputPath, err)
		}
	}

	return nil
}

// Convert decodes one MFi file and renders it as a complete Standard MIDI
// File. The result is built entirely in memory; on error nothing has been
// written anywhere.
func Convert(data []byte, log *slog.Logger) ([]byte, error) {
	decoder := mfi.NewDecoder(binio.NewReader(bytes.NewReader(data)), log)
	song, err := decoder.Decode()
	if err != nil {
		return nil, err
	}
	log.Debug("Song decoded", "tracks", len(song.Tracks))

	buf := &binio.SeekBuffer{}
	w := binio.NewWriter(buf)
	transcoder := midi.NewTranscoder(w, log)

	if err := transcoder.WriteHeader(song); err != nil {
		return nil, err
	}
	for i, track := range song.Tracks {
		if err := transcoder.WriteTrack(track, uint8(i*ChannelsPerTrack)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
