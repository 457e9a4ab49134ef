// Package media cuts speaker segments out of meeting recordings with
// ffmpeg.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
)

type Cutter struct {
	bin        string
	sampleRate int
	channels   int
	tmpDir     string
	log        *logrus.Entry
}

// NewCutter returns a Cutter writing clips in the format given by a. Clips
// go to tmpDir, or the system temp directory when it is empty.
func NewCutter(a cfg.Audio, tmpDir string) *Cutter {
	return &Cutter{
		bin:        "ffmpeg",
		sampleRate: a.SampleRate,
		channels:   a.Channels,
		tmpDir:     tmpDir,
		log:        logrus.WithField("component", "media"),
	}
}

// Cut writes the [start, end) second range of audioPath to a new WAV file
// and returns its path. The caller removes the file.
func (c *Cutter) Cut(ctx context.Context, audioPath string, start, end float64) (string, error) {
	if end <= start {
		return "", fmt.Errorf("cut %s: empty range %.3f-%.3f", audioPath, start, end)
	}
	f, err := os.CreateTemp(c.tmpDir, "segment_*.wav")
	if err != nil {
		return "", err
	}
	out := f.Name()
	f.Close()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, c.args(audioPath, out, start, end)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	c.log.WithFields(logrus.Fields{"start": start, "end": end}).Tracef("cut %s", out)
	return out, nil
}

// ffmpeg -y -ss start -t dur -i input -ac 1 -ar 16000 -f wav output
func (c *Cutter) args(in, out string, start, end float64) []string {
	args := []string{
		"-y", "-loglevel", "error",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-t", strconv.FormatFloat(end-start, 'f', 3, 64),
		"-i", in,
	}
	if c.channels > 0 {
		args = append(args, "-ac", strconv.Itoa(c.channels))
	}
	if c.sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(c.sampleRate))
	}
	return append(args, "-f", "wav", out)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
