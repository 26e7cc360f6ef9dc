// Package cli parses command-line arguments into a Config.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config holds the settings parsed from the command line.
type Config struct {
	InputPath     string // MFi (.mld) file to convert
	OutputPath    string // MIDI (.mid) file to write
	SoundFontPath string // SoundFont (.sf2) for playback
	Play          bool   // play the converted file after writing it
	LogLevel      string // debug, info, warn, error
	ShowHelp      bool
}

// ParseArgs parses args into a Config. Exactly two positional arguments
// (input and output path) are required unless help is requested.
func ParseArgs(args []string) (*Config, error) {
	// Reorder so flags may follow the positional arguments.
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("mfi2midi", flag.ContinueOnError)

	config := &Config{}

	fs.StringVar(&config.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (shorthand)")
	fs.StringVar(&config.SoundFontPath, "soundfont", "", "SoundFont file for -play")
	fs.BoolVar(&config.Play, "play", false, "play the converted MIDI file")
	fs.BoolVar(&config.ShowHelp, "help", false, "show help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show help (shorthand)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	if config.ShowHelp {
		return config, nil
	}

	// Environment override, command-line flag wins.
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() != 2 {
		return nil, fmt.Errorf("expected <input.mld> <output.mid>, got %d arguments", fs.NArg())
	}
	config.InputPath = fs.Arg(0)
	config.OutputPath = fs.Arg(1)

	if config.Play && config.SoundFontPath == "" {
		return nil, fmt.Errorf("-play requires -soundfont")
	}

	return config, nil
}

// reorderArgs moves flags in front of positional arguments so both
// orderings work.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// Value-carrying flags consume the next argument.
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if !isBoolFlag(arg) {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "-help", "-play", "--play":
		return true
	}
	return false
}

// PrintHelp writes the usage message to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `mfi2midi - MFi (.mld) to Standard MIDI File converter

Usage:
  mfi2midi [options] <input.mld> <output.mid>

Arguments:
  input.mld     MFi ringtone file to convert
  output.mid    MIDI file to write

Options:
  -play                       play the converted file (requires -soundfont)
  -soundfont <file.sf2>       SoundFont used for playback
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  -h, --help                  show this help

Environment Variables:
  LOG_LEVEL=<level>           log level

Examples:
  mfi2midi ringtone.mld ringtone.mid
  mfi2midi --log-level debug ringtone.mld ringtone.mid
  mfi2midi -play -soundfont GeneralUser-GS.sf2 ringtone.mld ringtone.mid
`)
}
