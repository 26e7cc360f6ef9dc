package cli

import (
	"testing"
)

func TestParseArgs_Positional(t *testing.T) {
	config, err := ParseArgs([]string{"song.mld", "song.mid"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if config.InputPath != "song.mld" || config.OutputPath != "song.mid" {
		t.Errorf("paths = %q, %q", config.InputPath, config.OutputPath)
	}
	if config.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", config.LogLevel)
	}
	if config.Play {
		t.Error("Play should default to false")
	}
}

func TestParseArgs_FlagsAfterPositionals(t *testing.T) {
	config, err := ParseArgs([]string{"song.mld", "song.mid", "-l", "debug"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
}

func TestParseArgs_PlayWithSoundFont(t *testing.T) {
	config, err := ParseArgs([]string{"-play", "-soundfont", "gm.sf2", "song.mld", "song.mid"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if !config.Play || config.SoundFontPath != "gm.sf2" {
		t.Errorf("Play = %v, SoundFontPath = %q", config.Play, config.SoundFontPath)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"missing output", []string{"song.mld"}},
		{"extra argument", []string{"a.mld", "b.mid", "c"}},
		{"play without soundfont", []string{"-play", "a.mld", "b.mid"}},
		{"bad log level", []string{"-l", "loud", "a.mld", "b.mid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args); err == nil {
				t.Error("ParseArgs should fail")
			}
		})
	}
}

func TestParseArgs_Help(t *testing.T) {
	// Help short-circuits the positional-argument requirement.
	config, err := ParseArgs([]string{"-h"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if !config.ShowHelp {
		t.Error("ShowHelp should be set")
	}
}

func TestParseArgs_LogLevelEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	config, err := ParseArgs([]string{"a.mld", "b.mid"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if config.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn (from environment)", config.LogLevel)
	}

	// The command-line flag wins over the environment.
	config, err = ParseArgs([]string{"-l", "error", "a.mld", "b.mid"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if config.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (from flag)", config.LogLevel)
	}
}
