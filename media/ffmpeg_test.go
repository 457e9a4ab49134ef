package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
)

func TestArgs(t *testing.T) {
	c := NewCutter(cfg.Audio{SampleRate: 16000, Channels: 1}, "")
	got := c.args("in.mp3", "out.wav", 1.5, 4.25)
	want := []string{
		"-y", "-loglevel", "error",
		"-ss", "1.500", "-t", "2.750",
		"-i", "in.mp3",
		"-ac", "1", "-ar", "16000",
		"-f", "wav", "out.wav",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}

	bare := NewCutter(cfg.Audio{}, "").args("in.wav", "out.wav", 0, 1)
	for _, a := range bare {
		if a == "-ar" || a == "-ac" {
			t.Fatalf("unset format must not be forced: %v", bare)
		}
	}
}

func TestCutRejectsEmptyRange(t *testing.T) {
	c := NewCutter(cfg.Audio{}, t.TempDir())
	if _, err := c.Cut(context.Background(), "in.wav", 3, 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestCutFailureRemovesClip(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	c := NewCutter(cfg.Audio{SampleRate: 16000, Channels: 1}, dir)
	if _, err := c.Cut(context.Background(), filepath.Join(dir, "missing.wav"), 0, 1); err == nil {
		t.Fatal("expected ffmpeg error")
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 0 {
		t.Fatalf("clip left behind: %v", left)
	}
}
